package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/internal/sequence"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

var ErrUnknownMessage = errors.New("feed: unknown message type")

// message is the wire format of the feed. Executions:
//
//	{"type":"execution","symbol":"BTC_JPY","side":"BUY","price":"100","size":"0.5","mills":1700000000000}
//
// Book updates carry [price, size] pairs; size 0 removes a level:
//
//	{"type":"book","symbol":"BTC_JPY","full":false,"asks":[[101,1.2]],"bids":[[99,0]]}
type message struct {
	Type   string          `json:"type"`
	Symbol string          `json:"symbol"`
	Side   domain.Side     `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Mills  int64           `json:"mills"`
	Full   bool            `json:"full"`
	Asks   []wireLevel     `json:"asks"`
	Bids   []wireLevel     `json:"bids"`
}

type wireLevel [2]float64

func levels(in []wireLevel) []domain.Level {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Level, len(in))
	for i, l := range in {
		out[i] = domain.Level{Price: l[0], Size: float32(l[1])}
	}
	return out
}

// Decoder turns feed messages into engine events. It numbers events consecutively and
// gives executions their IDs and consecutive classification.
type Decoder struct {
	seq     *sequence.Sequencer
	nextSeq uint64
	symbol  string
}

// NewDecoder numbers events from firstSeq. Messages for other symbols are rejected
// unless symbol is empty.
func NewDecoder(symbol string, padding int64, firstSeq uint64) (*Decoder, error) {
	s, err := sequence.New(padding)
	if err != nil {
		return nil, err
	}
	if firstSeq == 0 {
		firstSeq = 1
	}
	return &Decoder{seq: s, nextSeq: firstSeq, symbol: symbol}, nil
}

// Decode parses one message. Heartbeats decode to nil without an error.
func (d *Decoder) Decode(raw []byte) (event.Event, error) {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("feed: bad message: %w", err)
	}
	if m.Type == "heartbeat" {
		return nil, nil
	}
	if d.symbol != "" && m.Symbol != "" && m.Symbol != d.symbol {
		return nil, fmt.Errorf("feed: symbol %s, want %s", m.Symbol, d.symbol)
	}

	switch m.Type {
	case "execution":
		if !m.Size.IsPositive() || !m.Price.IsPositive() {
			return nil, fmt.Errorf("feed: execution needs positive price and size")
		}
		if m.Side != domain.Buy && m.Side != domain.Sell {
			return nil, fmt.Errorf("feed: execution needs a side")
		}
		e, err := d.seq.Next(m.Side, m.Size, m.Price, m.Mills)
		if err != nil {
			return nil, err
		}
		ev := event.AcquireExecutionEvent()
		ev.Symbol, ev.Execution = m.Symbol, e
		ev.Seq, ev.Ts = d.take(), m.Mills
		return ev, nil

	case "book":
		ev := &event.BookDiffEvent{
			Symbol: m.Symbol,
			Diff:   domain.BookDiff{Full: m.Full, Asks: levels(m.Asks), Bids: levels(m.Bids)},
		}
		ev.Seq, ev.Ts = d.take(), m.Mills
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
}

// Candle expands an OHLCV bar into pseudo execution events numbered after the last
// decoded message.
func (d *Decoder) Candle(open, high, low, close, volume decimal.Decimal, mills int64, span time.Duration) []event.Event {
	execs := d.seq.Candle(open, high, low, close, volume, mills, span)
	out := make([]event.Event, len(execs))
	for i, e := range execs {
		ev := &event.ExecutionEvent{Symbol: d.symbol, Execution: e}
		ev.Seq, ev.Ts = d.take(), e.Mills
		out[i] = ev
	}
	return out
}

func (d *Decoder) take() uint64 {
	s := d.nextSeq
	d.nextSeq++
	return s
}
