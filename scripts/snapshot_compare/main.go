// Command snapshot_compare checks that two document stores hold the same records, for
// example a bolt file and the Postgres database it was migrated into.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ecorvi/schmng-api/pkg/config"
	"github.com/ecorvi/schmng-api/pkg/database"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

func main() {
	var (
		sourceBolt string
		targetBolt string
		timeout    time.Duration
	)

	flag.StringVar(&sourceBolt, "source-bolt", "data/schmng.db", "Bolt file holding the reference snapshot")
	flag.StringVar(&targetBolt, "target-bolt", "", "Bolt file to compare against; empty uses the Postgres settings from the environment")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall time limit")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	source, err := docstore.OpenBolt(sourceBolt)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	defer source.Close()

	dest, closeDest, err := openTarget(ctx, targetBolt)
	if err != nil {
		log.Fatalf("failed to open target: %v", err)
	}
	defer closeDest()

	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range collections {
		comp := compareCollection(ctx, source, dest, t)
		if comp.drifted() {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(os.Stdout, comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func openTarget(ctx context.Context, boltPath string) (docstore.Gateway, func(), error) {
	if boltPath != "" {
		b, err := docstore.OpenBolt(boltPath)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return docstore.NewPostgres(db, docstore.PostgresOptions{}), func() { _ = db.Close() }, nil
}
