package core

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaseCount is the first-generation record volume.
const DefaultBaseCount = 50000

// Plan is a full multi-generation run: the base snapshot volume and date
// window, then one GenerationSpec per derived generation.
type Plan struct {
	BaseCount   int
	BaseWindow  DateWindow
	Generations []GenerationSpec
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultPlan returns the canned three-generation plan: 20% deletions, 20%
// inserts and heavier price churn in generation two, then a lighter 10% pass
// in generation three. Each generation's windows start strictly after every
// window of the generation before it.
func DefaultPlan() Plan {
	return Plan{
		BaseCount:  DefaultBaseCount,
		BaseWindow: DateWindow{Start: date(2023, time.January, 1), End: date(2023, time.December, 28)},
		Generations: []GenerationSpec{
			{
				DeleteRatio:         0.2,
				PriceChangeRatio:    0.3,
				PriceFactorLow:      0.8,
				PriceFactorHigh:     1.2,
				CategoryChangeRatio: 0.1,
				InsertRatio:         0.2,
				UpdateWindow:        DateWindow{Start: date(2024, time.January, 1), End: date(2024, time.June, 28)},
				InsertWindow:        DateWindow{Start: date(2024, time.July, 1), End: date(2024, time.December, 28)},
			},
			{
				DeleteRatio:      0.1,
				PriceChangeRatio: 0.2,
				PriceFactorLow:   0.9,
				PriceFactorHigh:  1.1,
				InsertRatio:      0.1,
				UpdateWindow:     DateWindow{Start: date(2025, time.January, 1), End: date(2025, time.March, 28)},
				InsertWindow:     DateWindow{Start: date(2025, time.February, 1), End: date(2025, time.April, 28)},
			},
		},
	}
}

// Validate checks the plan and every generation spec, including that window
// ranges only ever move forward between generations. Overlapping windows
// would make a record's date ambiguous about which generation touched it.
func (p Plan) Validate() error {
	if p.BaseCount < 1 {
		return errors.New("base count must be at least 1")
	}
	if p.BaseWindow.End.Before(p.BaseWindow.Start) {
		return errors.New("base window ends before it starts")
	}
	prevEnd := p.BaseWindow.End
	for i, spec := range p.Generations {
		if err := spec.Validate(); err != nil {
			return errors.Wrapf(err, "generation %d", i+2)
		}
		if !spec.UpdateWindow.Start.After(prevEnd) || !spec.InsertWindow.Start.After(prevEnd) {
			return errors.Errorf("generation %d windows must start after the prior generation ends", i+2)
		}
		prevEnd = laterOf(spec.UpdateWindow.End, spec.InsertWindow.End)
	}
	return nil
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Run generates every snapshot in sequence, each derived from its in-memory
// predecessor. The returned stats cover the derived generations only, so
// stats[i] describes how snapshots[i+1] was produced from snapshots[i].
func (p Plan) Run(rng *rand.Rand) ([]Snapshot, []ChurnStats) {
	seq := NewKeySequence()
	snaps := make([]Snapshot, 0, len(p.Generations)+1)
	stats := make([]ChurnStats, 0, len(p.Generations))

	snaps = append(snaps, BaseSnapshot(rng, p.BaseCount, seq, p.BaseWindow))
	for _, spec := range p.Generations {
		next, st := spec.Derive(snaps[len(snaps)-1], p.BaseCount, seq, rng)
		snaps = append(snaps, next)
		stats = append(stats, st)
	}
	return snaps, stats
}
