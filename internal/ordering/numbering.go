package ordering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ordersite/internal/calendar"
)

const orderNumberPrefix = "ORD-"

// SequenceStore is the atomic counter behind order numbers.
type SequenceStore interface {
	Next(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	SeedAtLeast(ctx context.Context, key string, floor int64) error
}

// NumberLister returns existing order numbers that share a prefix.
type NumberLister interface {
	NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Numberer allocates ORD-YYYYMMDD-NNN numbers from a per-day counter.
type Numberer struct {
	seq    SequenceStore
	orders NumberLister
	loc    *time.Location
}

func NewNumberer(seq SequenceStore, orders NumberLister, loc *time.Location) *Numberer {
	if loc == nil {
		loc = time.UTC
	}
	return &Numberer{seq: seq, orders: orders, loc: loc}
}

// Next allocates the next number for the day of now. The first allocation of
// a day seeds the counter from any orders already carrying that day's prefix.
func (n *Numberer) Next(ctx context.Context, now time.Time) (string, error) {
	day := calendar.DateOf(now.In(n.loc)).Compact()
	key := "order:" + day

	exists, err := n.seq.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check order counter: %w", err)
	}
	if !exists {
		floor, err := n.highestExisting(ctx, day)
		if err != nil {
			return "", err
		}
		if err := n.seq.SeedAtLeast(ctx, key, floor); err != nil {
			return "", fmt.Errorf("seed order counter: %w", err)
		}
	}

	seq, err := n.seq.Next(ctx, key)
	if err != nil {
		return "", fmt.Errorf("increment order counter: %w", err)
	}
	return FormatOrderNumber(day, seq), nil
}

func (n *Numberer) highestExisting(ctx context.Context, day string) (int64, error) {
	numbers, err := n.orders.NumbersWithPrefix(ctx, dayPrefix(day))
	if err != nil {
		return 0, fmt.Errorf("scan order numbers: %w", err)
	}
	var highest int64
	for _, number := range numbers {
		if seq, ok := ParseSequence(number, day); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

func dayPrefix(day string) string {
	return orderNumberPrefix + day + "-"
}

// FormatOrderNumber pads the sequence to three digits; larger sequences keep
// all their digits.
func FormatOrderNumber(day string, seq int64) string {
	return fmt.Sprintf("%s%s-%03d", orderNumberPrefix, day, seq)
}

// ParseSequence extracts the numeric suffix of an order number issued on day.
func ParseSequence(number, day string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, dayPrefix(day))
	if !ok || rest == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
