package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/poriyiyal/testgen/core"
)

// csv-generate writes three related CSV snapshots of a synthetic product
// catalogue. Each snapshot after the first derives from its predecessor with
// controlled churn (deletions, price and category changes, fresh inserts),
// giving diff and sync tooling realistic evolving fixtures to chew on.
func main() {
	// Read records, seed, and dir from command line arguments
	records := flag.Int("records", core.DefaultBaseCount, "Base record count for the first snapshot")
	seed := flag.Int64("seed", 0, "RNG seed, 0 seeds from the clock")
	dir := flag.String("dir", ".", "Directory the snapshot files are written to")

	flag.Parse()

	plan := core.DefaultPlan()
	plan.BaseCount = *records
	if err := plan.Validate(); err != nil {
		slog.Error("invalid plan", slog.Any("error", err))
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	slog.Info("csv-generate started",
		slog.Int("records", *records),
		slog.Int64("seed", rngSeed),
		slog.String("dir", *dir))

	snapshots, stats := plan.Run(rng)

	for i, snapshot := range snapshots {
		path := filepath.Join(*dir, core.SnapshotFilename(i+1))
		if err := core.WriteSnapshotFile(path, snapshot); err != nil {
			slog.Error("error writing snapshot", slog.Any("error", err), slog.String("path", path))
			os.Exit(1)
		}
		slog.Info("snapshot written", slog.String("path", path), slog.Int("records", len(snapshot)))
		if i > 0 {
			st := stats[i-1]
			slog.Info("churn applied",
				slog.Int("generation", i+1),
				slog.Int("deleted", st.Deleted),
				slog.Int("price_changed", st.PriceChanged),
				slog.Int("category_changed", st.CategoryChanged),
				slog.Int("inserted", st.Inserted))
		}
	}
	slog.Info("Finished")
}
