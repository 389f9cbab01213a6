package core

import (
	"math"
	"math/rand"

	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// GenerationSpec describes the churn applied when deriving one snapshot from
// its predecessor: how many records drop out, how many of the survivors get a
// new price or category, and how many fresh records arrive. The windows are
// the date ranges this generation stamps onto the records it touches.
type GenerationSpec struct {
	DeleteRatio         float64 `valid:"range(0|1)"`
	PriceChangeRatio    float64 `valid:"range(0|1)"`
	PriceFactorLow      float64
	PriceFactorHigh     float64
	CategoryChangeRatio float64 `valid:"range(0|1)"`
	InsertRatio         float64 `valid:"range(0|1)"`
	UpdateWindow        DateWindow
	InsertWindow        DateWindow
}

// Validate checks ratios and windows up front. Derivation itself never fails
// on a spec that passes here.
func (spec GenerationSpec) Validate() error {
	if _, err := govalidator.ValidateStruct(spec); err != nil {
		return err
	}
	if spec.PriceFactorLow <= 0 || spec.PriceFactorHigh < spec.PriceFactorLow {
		return errors.Errorf("price factor range [%g, %g] is not positive ascending", spec.PriceFactorLow, spec.PriceFactorHigh)
	}
	if spec.UpdateWindow.End.Before(spec.UpdateWindow.Start) {
		return errors.New("update window ends before it starts")
	}
	if spec.InsertWindow.End.Before(spec.InsertWindow.Start) {
		return errors.New("insert window ends before it starts")
	}
	return nil
}

// ChurnStats reports what one derivation actually did. Price and category
// changes count only when the stored value differs afterwards, since
// resampling can draw the value already present.
type ChurnStats struct {
	Retained        int
	Deleted         int
	PriceChanged    int
	CategoryChanged int
	Inserted        int
}

// Derive produces the next generation from prior. It retains an exact sample
// of floor((1-DeleteRatio)*len(prior)) records, re-dates every survivor into
// UpdateWindow, rolls price and category changes per record, then appends
// floor(InsertRatio*baseCount) fresh records dated in InsertWindow.
// Fractional counts always round down. The result is shuffled.
func (spec GenerationSpec) Derive(prior Snapshot, baseCount int, seq *KeySequence, rng *rand.Rand) (Snapshot, ChurnStats) {
	retained := int(math.Floor((1 - spec.DeleteRatio) * float64(len(prior))))
	inserted := int(math.Floor(spec.InsertRatio * float64(baseCount)))
	perm := rng.Perm(len(prior))

	stats := ChurnStats{
		Retained: retained,
		Deleted:  len(prior) - retained,
		Inserted: inserted,
	}

	next := make(Snapshot, 0, retained+inserted)
	for _, idx := range perm[:retained] {
		rec := prior[idx]
		rec.LastUpdate = spec.UpdateWindow.Random(rng)
		if rng.Float64() < spec.PriceChangeRatio {
			factor := spec.PriceFactorLow + rng.Float64()*(spec.PriceFactorHigh-spec.PriceFactorLow)
			if p := roundPrice(rec.Price * factor); p != rec.Price {
				rec.Price = p
				stats.PriceChanged++
			}
		}
		if rng.Float64() < spec.CategoryChangeRatio {
			if c := RandomCategory(rng); c != rec.Category {
				rec.Category = c
				stats.CategoryChanged++
			}
		}
		next = append(next, rec)
	}

	for i := 0; i < inserted; i++ {
		next = append(next, NewRecord(rng, seq, spec.InsertWindow))
	}

	rng.Shuffle(len(next), func(i, j int) {
		next[i], next[j] = next[j], next[i]
	})
	return next, stats
}
