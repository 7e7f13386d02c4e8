package execution

import (
	"context"
	"sync"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/simulator"
)

// Verifier runs every order through the matching simulator.
type Verifier struct {
	mu  sync.Locker
	sim *simulator.Simulator
}

// NewVerifier wraps sim. mu guards the simulator and must be the lock its feeder holds
// while delivering executions; nil gives the verifier a private one.
func NewVerifier(sim *simulator.Simulator, mu sync.Locker) *Verifier {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Verifier{mu: mu, sim: sim}
}

func (v *Verifier) Request(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sim.Request(order)
}

func (v *Verifier) Cancel(ctx context.Context, orderID string) (<-chan domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sim.Cancel(orderID)
}

func (v *Verifier) Orders(ctx context.Context) ([]domain.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sim.Orders(), nil
}

func (v *Verifier) Setting() domain.MarketSetting { return v.sim.Setting() }

// Executions returns the simulator's fills.
func (v *Verifier) Executions() []domain.Execution {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sim.Executions()
}
