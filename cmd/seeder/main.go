package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/coldreach/coldreach-backend/internal/config"
	"github.com/coldreach/coldreach-backend/internal/db"
)

// Seeds development data. Files run in order; each is one transaction-free
// batch, so rerunning against a non-empty database will fail on the unique
// constraints rather than duplicate rows.
var seedFiles = []string{
	"seed/plans.sql",
	"seed/leads.sql",
	"seed/campaigns.sql",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.New(ctx, cfg.Psql)
	if err != nil {
		slog.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			slog.Error("read seed file", "file", file, "error", err)
			os.Exit(1)
		}
		if _, err := pool.ExecContext(ctx, string(content)); err != nil {
			slog.Error("execute seed file", "file", file, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
