package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"wardrobe/internal/adapter/repo"
	"wardrobe/internal/infra"
	"wardrobe/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	var (
		olderThanFlag time.Duration
		dryRunFlag    bool
	)
	flag.DurationVar(&olderThanFlag, "older-than", 30*time.Minute, "fail items stuck in a non-terminal status for longer than this")
	flag.BoolVar(&dryRunFlag, "dry-run", false, "list stuck items without changing them")
	flag.Parse()

	if olderThanFlag <= 0 {
		exitWithError(errors.New("-older-than must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "sweep").Logger()
	store := repo.NewClothesRepository(infra.NewSQLRunner(pool, logger))
	cutoff := time.Now().Add(-olderThanFlag)

	runCtx, cancelRun := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelRun()

	if dryRunFlag {
		stuck, err := store.ListStuck(runCtx, cutoff)
		if err != nil {
			exitWithError(fmt.Errorf("failed to list stuck items: %w", err))
		}
		for _, item := range stuck {
			fmt.Printf("%s\t%s\t%s\n", item.ID, item.Status, item.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Printf("%d item(s) stuck since before %s\n", len(stuck), cutoff.Format(time.RFC3339))
		return
	}

	n, err := pipeline.Sweep(runCtx, store, cutoff, logger)
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("marked %d item(s) as FAILED (%s)\n", n, pipeline.AbandonedReason)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
