// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/entsync"
	"github.com/poiesic/entsync/backfill"
	"github.com/poiesic/entsync/core"
	"github.com/poiesic/entsync/engine"
	"github.com/poiesic/entsync/engine/mock"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "entsync",
		Usage: "Sync named entities extracted by a search engine back into the host store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB host store directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Search engine URL (overrides config)",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Index name (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Use an in-memory engine instead of the configured host",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "activate",
				Usage:  "Provision the ingest pipeline and entity mapping",
				Action: activateCommand,
			},
			{
				Name:      "sync",
				Usage:     "Store and index records read from a JSON lines file",
				ArgsUsage: "FILE (- for stdin)",
				Action:    syncCommand,
			},
			{
				Name:      "show",
				Usage:     "Print the tags and attributes of host records",
				ArgsUsage: "ID...",
				Action:    showCommand,
			},
			{
				Name:      "augment",
				Usage:     "Print indexing request paths with the pipeline parameter added",
				ArgsUsage: "PATH...",
				Action:    augmentCommand,
			},
			{
				Name:   "backfill",
				Usage:  "Sync entities for every record already in the host store",
				Action: backfillCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: backfill.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: backfill.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed batches",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "continue-on-error",
						Usage: "Keep going after a batch exhausts its retries",
					},
					&cli.BoolFlag{
						Name:  "restart",
						Usage: "Ignore the checkpoint of an interrupted run and start over",
					},
				},
			},
		},
	}
}

// loadConfig builds the configuration from the config file and global flags.
func loadConfig(c *cli.Context) (*entsync.Config, error) {
	cfg := entsync.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = entsync.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if store := c.String("store"); store != "" {
		cfg.StorePath = store
	}
	if host := c.String("host"); host != "" {
		cfg.Engine.Host = host
	}
	if index := c.String("index"); index != "" {
		cfg.Engine.Index = index
	}
	return cfg, nil
}

func openService(c *cli.Context) (*entsync.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts := []entsync.ServiceOption{entsync.WithLogger(slog.Default())}
	if c.Bool("dry-run") {
		opts = append(opts, entsync.WithClientFactory(memoryEngine))
	}
	svc, err := entsync.New(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

// memoryEngine is the ClientFactory used by --dry-run.
func memoryEngine(_ *engine.Config, publisher engine.Publisher, interceptor engine.RequestInterceptor, _ *slog.Logger) (engine.Client, error) {
	return mock.NewMockEngine().WithPublisher(publisher).WithInterceptor(interceptor), nil
}

func activateCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Activate(c.Context); err != nil {
		return fmt.Errorf("activation failed: %w", err)
	}

	cfg := svc.Config()
	fmt.Fprintf(c.App.Writer, "Pipeline %s provisioned for index %s\n", cfg.Pipeline.Name, cfg.Engine.Index)
	return nil
}

func syncCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file")
	}
	in, closeIn, err := openInput(c.Args().First(), c.App.Reader)
	if err != nil {
		return err
	}
	defer closeIn()

	records, err := readRecords(in)
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	batch, err := svc.Save(c.Context, records...)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	svc.Wait()

	stats := svc.Stats()
	fmt.Fprintf(c.App.Writer, "Indexed %d records (event %s)\n", len(batch.IDs), batch.EventID)
	fmt.Fprintf(c.App.Writer, "Written: %d, failed: %d, skipped: %d\n", stats.Written, stats.Failed, stats.Skipped)
	if stats.Errors > 0 {
		return fmt.Errorf("%d batches failed", stats.Errors)
	}
	return nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// readRecords parses one {"id": ..., "content": ...} object per line.
// Blank lines are ignored.
func readRecords(r io.Reader) ([]*core.Record, error) {
	var records []*core.Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if !gjson.Valid(text) {
			return nil, fmt.Errorf("line %d: invalid JSON", line)
		}
		fields := gjson.GetMany(text, "id", "content")
		id := fields[0].String()
		if id == "" {
			return nil, fmt.Errorf("line %d: missing id", line)
		}
		records = append(records, &core.Record{ID: core.DocumentID(id), Content: fields[1].String()})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return records, nil
}

func showCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one record id is required")
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, id := range c.Args().Slice() {
		record, err := svc.HostStore().GetRecord(c.Context, core.DocumentID(id))
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		printRecord(c.App.Writer, record)
	}
	return nil
}

func printRecord(w io.Writer, record *core.Record) {
	fmt.Fprintf(w, "%s\n", record.ID)
	for _, name := range slices.Sorted(maps.Keys(record.Tags)) {
		fmt.Fprintf(w, "  tags %s: %s\n", name, strings.Join(record.Tags[name], ", "))
	}
	for _, name := range slices.Sorted(maps.Keys(record.Attributes)) {
		fmt.Fprintf(w, "  meta %s: %s\n", name, strings.Join(record.Attributes[name], ", "))
	}
}

func augmentCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, path := range c.Args().Slice() {
		fmt.Fprintln(c.App.Writer, svc.Augmenter().Augment(path))
	}
	return nil
}

func backfillCommand(c *cli.Context) error {
	config := &backfill.Config{
		BatchSize:       c.Int("batch-size"),
		ReportInterval:  c.Int("report-interval"),
		MaxRetries:      c.Int("max-retries"),
		RetryDelay:      c.Duration("retry-delay"),
		ContinueOnError: c.Bool("continue-on-error"),
		Restart:         c.Bool("restart"),
	}

	// Validate config
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Config()
	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", storeName(cfg.StorePath))
	fmt.Fprintf(c.App.ErrWriter, "Engine: %s/%s\n", cfg.Engine.Host, cfg.Engine.Index)
	fmt.Fprintf(c.App.ErrWriter, "Pipeline: %s\n", cfg.Pipeline.Name)
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := svc.Backfill(c.Context, config, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	svc.Wait()

	fmt.Fprintf(c.App.Writer, "Backfilled %d records in %d batches (%d failed, %d already synced) in %s\n",
		summary.Documents, summary.Batches, summary.Failed, summary.Resumed, summary.Elapsed.Round(time.Millisecond))
	return nil
}

func storeName(path string) string {
	if path == "" {
		return "(in-memory)"
	}
	return path
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
