// Package timing produces the humanized intra-day send schedule: a
// deterministic, non-repeating list of minute offsets from the start of
// business hours, unique per (date, account) pair.
package timing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
)

const (
	minOffsets = 3
	maxOffsets = 20

	shortGapMin = 1
	shortGapMax = 30
	longGapMin  = 30
	longGapMax  = 120

	// shortGapShare is the probability of a burst-style short gap; the
	// rest are longer pauses.
	shortGapShare = 0.6
)

// PatternStore persists per-day patterns with a consumption cursor.
type PatternStore interface {
	Ensure(ctx context.Context, accountID int64, day string, offsets []int) error
	ConsumeOffset(ctx context.Context, accountID int64, day string) (int, bool, error)
}

// Generator derives send times from persisted daily patterns.
type Generator struct {
	Store PatternStore
	Hours ratelimit.BusinessHours
}

func NewGenerator(store PatternStore, hours ratelimit.BusinessHours) *Generator {
	return &Generator{Store: store, Hours: hours}
}

// PatternFor is a pure function of (day, accountID): re-querying the same
// pair always returns the same sequence, and different days diverge. Gaps
// are bimodal to read like a human's bursts and pauses, and the running
// total never leaves the business-hours window.
func (g *Generator) PatternFor(day string, accountID int64) []int {
	rng := rand.New(rand.NewSource(patternSeed(day, accountID)))

	count := minOffsets + rng.Intn(maxOffsets-minOffsets+1)
	window := g.Hours.WindowMinutes()

	offsets := make([]int, 0, count)
	cursor := 0
	for i := 0; i < count; i++ {
		var gap int
		if rng.Float64() < shortGapShare {
			gap = shortGapMin + rng.Intn(shortGapMax-shortGapMin+1)
		} else {
			gap = longGapMin + rng.Intn(longGapMax-longGapMin+1)
		}
		cursor += gap
		if cursor >= window {
			break
		}
		offsets = append(offsets, cursor)
	}
	if len(offsets) == 0 {
		// Degenerate window; send at opening.
		offsets = append(offsets, 0)
	}
	return offsets
}

// NextSendTime consumes the next unused offset at or after the given
// moment, in the given location. Exhausted or already-passed days spill
// into the next business day's pattern.
func (g *Generator) NextSendTime(ctx context.Context, accountID int64, loc *time.Location, after time.Time) (time.Time, error) {
	day := after.In(loc)
	// Bounded scan: a pattern has at least one usable future offset
	// within a few days unless quota gating is badly misconfigured.
	for i := 0; i < 62; i++ {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			day = startOfNextDay(day)
			continue
		}

		dayKey := day.Format("2006-01-02")
		if err := g.Store.Ensure(ctx, accountID, dayKey, g.PatternFor(dayKey, accountID)); err != nil {
			return time.Time{}, err
		}

		for {
			offset, ok, err := g.Store.ConsumeOffset(ctx, accountID, dayKey)
			if err != nil {
				return time.Time{}, err
			}
			if !ok {
				break
			}
			at := g.Hours.StartOfDay(day).Add(time.Duration(offset) * time.Minute)
			if !at.Before(after) {
				return at, nil
			}
		}
		day = startOfNextDay(day)
	}
	return time.Time{}, fmt.Errorf("timing: no usable send slot for account %d after %s", accountID, after)
}

func patternSeed(day string, accountID int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", day, accountID)
	return int64(h.Sum64())
}

func startOfNextDay(t time.Time) time.Time {
	year, month, d := t.Date()
	return time.Date(year, month, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
