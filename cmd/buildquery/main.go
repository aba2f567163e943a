// Copyright 2026 Zein Alasali
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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/zeinalasali/buildquery"
	"github.com/zeinalasali/buildquery/answer"
	"github.com/zeinalasali/buildquery/config"
	"github.com/zeinalasali/buildquery/core"
	"github.com/zeinalasali/buildquery/reindex"
)

func main() {
	app := &cli.App{
		Name:  "buildquery",
		Usage: "Semantic retrieval and grounded answers for construction project data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Ask a question about an organization's projects",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "org",
						Usage:    "Organization id (tenant scope)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Restrict retrieval to one entity type (project, cost-item, expense)",
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of retrieval candidates (0 uses the configured default)",
					},
					&cli.IntFlag{
						Name:  "budget",
						Usage: "Context token budget (0 uses the configured default)",
					},
					&cli.BoolFlag{
						Name:  "multi-step",
						Usage: "Allow a multi-step plan for compound questions",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild all embeddings for an organization",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "org",
						Usage:    "Organization id (tenant scope)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding batches",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openEngine loads the configuration and opens the engine over it.
func openEngine(c *cli.Context) (*buildquery.Engine, *config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	engine, err := buildquery.NewEngine(cfg.Storage.Path,
		buildquery.WithAIConfig(aiConfig),
		buildquery.WithRetryConfig(cfg.RetryConfig()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, cfg, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	typeFilter, err := parseEntityType(c.String("type"))
	if err != nil {
		return err
	}

	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	answerer, err := engine.NewAnswerer()
	if err != nil {
		return fmt.Errorf("failed to build answerer: %w", err)
	}

	k := c.Int("k")
	if k == 0 {
		k = cfg.Query.K
	}
	budget := c.Int("budget")
	if budget == 0 {
		budget = cfg.Query.TokenBudget
	}

	result, err := answerer.Answer(context.Background(), core.ID(c.Uint64("org")), question, &answer.QueryOptions{
		TypeFilter:  typeFilter,
		K:           k,
		TokenBudget: budget,
		MultiStep:   c.Bool("multi-step"),
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Text)
	if len(result.Citations) > 0 {
		refs := make([]string, len(result.Citations))
		for i, id := range result.Citations {
			refs[i] = fmt.Sprintf("%d", id)
		}
		fmt.Printf("\nSources: %s\n", strings.Join(refs, ", "))
	}
	if result.Degraded {
		fmt.Fprintln(os.Stderr, "note: the answer is degraded; some records or services were unavailable")
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer, err := engine.NewReindexer(reindexConfig, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to build reindexer: %w", err)
	}

	if err := reindexer.Run(context.Background(), core.ID(c.Uint64("org"))); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

// parseEntityType maps the CLI type flag to a core.EntityType.
// Empty means no filter.
func parseEntityType(value string) (core.EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return 0, nil
	case "project":
		return core.EntityTypeProject, nil
	case "cost-item", "costitem":
		return core.EntityTypeCostItem, nil
	case "expense":
		return core.EntityTypeExpense, nil
	default:
		return 0, fmt.Errorf("invalid entity type %q: must be one of project, cost-item, expense", value)
	}
}

// setup loads environment files and configures logging before any command runs.
func setup(c *cli.Context) error {
	config.LoadEnv()

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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
