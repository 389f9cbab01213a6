package core

import (
	"fmt"
	"math"
	"math/rand"
)

// Categories is the fixed set products are classified into. Category churn
// resamples from this set and never invents new values.
var Categories = []string{"Electronics", "Books", "Clothing", "Home Goods", "Toys"}

var nameSuffixes = []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}

const (
	minBasePrice = 5.0
	maxBasePrice = 500.0
)

// ProductName builds the display name for the record with numeric index n.
func ProductName(rng *rand.Rand, n int) string {
	return fmt.Sprintf("Product_%d_%s", n, nameSuffixes[rng.Intn(len(nameSuffixes))])
}

// RandomCategory draws one of the fixed categories.
func RandomCategory(rng *rand.Rand) string {
	return Categories[rng.Intn(len(Categories))]
}

// RandomPrice draws a price uniformly from the base range, rounded to cents.
func RandomPrice(rng *rand.Rand) float64 {
	return roundPrice(minBasePrice + rng.Float64()*(maxBasePrice-minBasePrice))
}

// roundPrice rounds to two decimals and keeps the result strictly positive.
func roundPrice(p float64) float64 {
	p = math.Round(p*100) / 100
	if p < 0.01 {
		p = 0.01
	}
	return p
}

// NewRecord allocates an identifier from seq and fills the remaining fields
// randomly, with the last-update date drawn from window.
func NewRecord(rng *rand.Rand, seq *KeySequence, window DateWindow) Record {
	id, n := seq.Next()
	return Record{
		ID:         id,
		Name:       ProductName(rng, n),
		Category:   RandomCategory(rng),
		Price:      RandomPrice(rng),
		LastUpdate: window.Random(rng),
	}
}

// BaseSnapshot generates the first-generation record set from scratch.
func BaseSnapshot(rng *rand.Rand, count int, seq *KeySequence, window DateWindow) Snapshot {
	snap := make(Snapshot, 0, count)
	for i := 0; i < count; i++ {
		snap = append(snap, NewRecord(rng, seq, window))
	}
	return snap
}
