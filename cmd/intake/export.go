package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"intake/pkg/config"
	"intake/pkg/persistence"
)

// runExport writes the newest request log records to a JSON file, atomically.
func runExport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to the YAML config file")
	out := fs.String("out", "request-logs.json", "Output file")
	limit := fs.Int("limit", 500, "Maximum records to export (1-500)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, err := persistence.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.ListRequestLogs(ctx, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read request logs: %v\n", err)
		return 1
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Failed to encode request logs: %v\n", err)
		return 1
	}
	if err := renameio.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		fmt.Fprintf(stderr, "Failed to write %s: %v\n", *out, err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d records to %s\n", len(records), *out)
	return 0
}
