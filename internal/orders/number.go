package orders

import (
	"context"
	"fmt"
	"time"
)

const orderSequenceName = "order_number"

// Sequencer hands out monotonically increasing values shared by every API
// instance.
type Sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// NumberGenerator formats ORD-<epochMillis>-<4-digit sequence>.
type NumberGenerator struct {
	seq Sequencer
	now func() time.Time
}

func NewNumberGenerator(seq Sequencer) *NumberGenerator {
	return &NumberGenerator{seq: seq, now: time.Now}
}

func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	n, err := g.seq.NextSequence(ctx, orderSequenceName)
	if err != nil {
		return "", fmt.Errorf("next order sequence: %w", err)
	}
	return FormatOrderNumber(g.now(), n), nil
}

// FormatOrderNumber keeps the last four digits of the sequence; the
// millisecond prefix keeps wrapped values unique.
func FormatOrderNumber(at time.Time, seq int64) string {
	if seq < 0 {
		seq = -seq
	}
	return fmt.Sprintf("ORD-%d-%04d", at.UnixMilli(), seq%10000)
}
