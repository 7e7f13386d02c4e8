package domain

import (
	"errors"
	"fmt"

	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

var ErrInvalidMarketSetting = errors.New("domain: invalid market setting")

// MarketSetting carries the per-market constants every core component is built from.
// It replaces any process-wide exchange configuration.
type MarketSetting struct {
	Symbol           string          `yaml:"symbol" json:"symbol"`
	TickSize         decimal.Decimal `yaml:"tick_size" json:"tick_size"`
	PriceScale       int32           `yaml:"price_scale" json:"price_scale"`
	SizeScale        int32           `yaml:"size_scale" json:"size_scale"`
	MinBidPrice      decimal.Decimal `yaml:"min_bid_price" json:"min_bid_price"`
	MaxLadderEntries int             `yaml:"max_ladder_entries" json:"max_ladder_entries"`
	IDPadding        int64           `yaml:"id_padding" json:"id_padding"`
}

// DefaultMarketSetting returns the setting used by tests and the sample config.
func DefaultMarketSetting() MarketSetting {
	return MarketSetting{
		Symbol:           "BTC_JPY",
		TickSize:         decimal.One,
		PriceScale:       0,
		SizeScale:        8,
		MinBidPrice:      decimal.One,
		MaxLadderEntries: 3000,
		IDPadding:        10000,
	}
}

// Validate rejects settings the ladders and sequencer cannot work with.
func (s MarketSetting) Validate() error {
	switch {
	case !s.TickSize.IsPositive():
		return fmt.Errorf("%w: tick_size must be positive, got %s", ErrInvalidMarketSetting, s.TickSize)
	case s.PriceScale < 0 || s.SizeScale < 0:
		return fmt.Errorf("%w: scales must not be negative", ErrInvalidMarketSetting)
	case s.MaxLadderEntries <= 0:
		return fmt.Errorf("%w: max_ladder_entries must be positive, got %d", ErrInvalidMarketSetting, s.MaxLadderEntries)
	case s.IDPadding <= 0:
		return fmt.Errorf("%w: id_padding must be positive, got %d", ErrInvalidMarketSetting, s.IDPadding)
	case s.MinBidPrice.IsNegative():
		return fmt.Errorf("%w: min_bid_price must not be negative", ErrInvalidMarketSetting)
	}
	return nil
}

// Level is one price point of a ladder. Zero-size levels are never stored.
type Level struct {
	Price float64 `json:"price"`
	Size  float32 `json:"size"`
}

// BookDiff is one message of the book feed. Full marks a resync that replaces both
// sides instead of patching them.
type BookDiff struct {
	Full bool    `json:"full"`
	Asks []Level `json:"asks,omitempty"`
	Bids []Level `json:"bids,omitempty"`
}

// Side returns the levels of one side; Buy selects the bids.
func (d BookDiff) Side(s Side) []Level {
	if s == Buy {
		return d.Bids
	}
	return d.Asks
}
