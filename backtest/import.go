package backtest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/internal/feed"
	"github.com/teletha/cointoss-sub007/internal/storage"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

const importBatch = 500

// Importer appends recorded market data to an event log, numbering it after whatever
// the log already holds.
type Importer struct {
	store   *storage.EventStore
	decoder *feed.Decoder
	batch   []event.Event
	total   int
}

// NewImporter continues the log of store for the market of setting.
func NewImporter(ctx context.Context, store *storage.EventStore, setting domain.MarketSetting) (*Importer, error) {
	last, err := store.GetLastSeq(ctx)
	if err != nil {
		return nil, err
	}
	dec, err := feed.NewDecoder(setting.Symbol, setting.IDPadding, last+1)
	if err != nil {
		return nil, err
	}
	return &Importer{store: store, decoder: dec}, nil
}

// Total is the number of events written so far.
func (im *Importer) Total() int { return im.total }

// JSONLines imports one feed message per line. Blank lines and heartbeats are skipped;
// a malformed line aborts the import with its line number.
func (im *Importer) JSONLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		ev, err := im.decoder.Decode([]byte(raw))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if ev == nil {
			continue
		}
		if err := im.add(ctx, ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return im.flush(ctx)
}

// Candles imports OHLCV rows "mills,open,high,low,close,volume" as pseudo executions
// spread over span. A header row starting with a non-numeric field is skipped.
func (im *Importer) Candles(ctx context.Context, r io.Reader, span time.Duration) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		row++

		mills, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			if row == 1 {
				continue
			}
			return fmt.Errorf("row %d: bad time %q", row, rec[0])
		}
		var v [5]decimal.Decimal
		for i := range v {
			if v[i], err = decimal.NewFromString(rec[i+1]); err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
		}
		for _, ev := range im.decoder.Candle(v[0], v[1], v[2], v[3], v[4], mills, span) {
			if err := im.add(ctx, ev); err != nil {
				return err
			}
		}
	}
	return im.flush(ctx)
}

func (im *Importer) add(ctx context.Context, ev event.Event) error {
	im.batch = append(im.batch, ev)
	if len(im.batch) >= importBatch {
		return im.flush(ctx)
	}
	return nil
}

func (im *Importer) flush(ctx context.Context) error {
	if len(im.batch) == 0 {
		return nil
	}
	if err := im.store.SaveEvents(ctx, im.batch); err != nil {
		return err
	}
	im.total += len(im.batch)
	slog.Debug("IMPORT_BATCH", slog.Int("events", len(im.batch)), slog.Int("total", im.total))
	im.batch = im.batch[:0]
	return nil
}
