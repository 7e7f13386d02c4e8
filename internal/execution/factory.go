package execution

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teletha/cointoss-sub007/internal/infra"
	"github.com/teletha/cointoss-sub007/internal/orderbook"
	"github.com/teletha/cointoss-sub007/internal/simulator"
)

// Mode represents the execution mode
type Mode string

const (
	ModeVerify Mode = "VERIFY"
	ModePaper  Mode = "PAPER"
)

// ParseMode normalizes a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeVerify, ModePaper:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Factory creates the Service matching the configured mode.
type Factory struct {
	config *infra.Config
}

func NewFactory(cfg *infra.Config) *Factory {
	return &Factory{config: cfg}
}

// Create wires a Service over the shared simulator and ladder pair. mu is the lock the
// engine holds while it feeds them.
func (f *Factory) Create(sim *simulator.Simulator, pair *orderbook.Pair, mu sync.Locker) (Service, error) {
	mode, err := ParseMode(f.config.Simulator.Mode)
	if err != nil {
		return nil, err
	}

	slog.Info("Initializing Execution Service", "mode", mode, "symbol", f.config.Market.Symbol)

	switch mode {
	case ModePaper:
		return NewPaper(NewMock(f.config.Market), pair, sim, mu, slog.Default()), nil
	default:
		return NewVerifier(sim, mu), nil
	}
}
