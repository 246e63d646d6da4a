package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/repository"
	"github.com/jonathan/portfolio-api/internal/schemas"
)

// seedConcurrency bounds concurrent creates per collection.
const seedConcurrency = 4

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture documents into the store",
	Long: `Reads a YAML file whose top-level keys are collection names (projects, writings,
systems, vault, arena, messages), each holding a list of documents, and creates
every document through the same validation the API applies.`,
	RunE: runSeed,
}

var seedFile string

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Path to YAML fixture file (required)")
	if err := seedCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}
	rootCmd.AddCommand(seedCmd)
}

// Fixtures maps a collection name to its documents.
type Fixtures map[string][]map[string]any

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	fixtures, err := loadFixtures(seedFile)
	if err != nil {
		return err
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	store, err := docstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() { _ = store.Close() }()

	_, err = seed(ctx, cmd.OutOrStdout(), repository.NewSet(store), fixtures)
	return err
}

func loadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file %s: %w", path, err)
	}

	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse fixture file %s: %w", path, err)
	}
	return fixtures, nil
}

// seed validates every fixture up front, then creates them. It returns the
// number of documents created per collection.
func seed(ctx context.Context, out io.Writer, repos *repository.Set, fixtures Fixtures) (map[string]int, error) {
	steps := []struct {
		name string
		run  func(context.Context, []map[string]any) (int, error)
	}{
		{repos.Projects.Name(), creator(repos.Projects)},
		{repos.Writings.Name(), creator(repos.Writings)},
		{repos.Systems.Name(), creator(repos.Systems)},
		{repos.Vault.Name(), creator(repos.Vault)},
		{repos.Arena.Name(), creator(repos.Arena)},
		{repos.Messages.Name(), creator(repos.Messages)},
	}
	known := make(map[string]bool, len(steps))
	for _, step := range steps {
		known[step.name] = true
	}
	for name, docs := range fixtures {
		if !known[name] {
			return nil, fmt.Errorf("unknown collection %q in fixtures", name)
		}
		for i, doc := range docs {
			if err := schemas.ValidateDocument(name, doc); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
		}
	}

	counts := make(map[string]int)
	for _, step := range steps {
		docs, ok := fixtures[step.name]
		if !ok {
			continue
		}
		n, err := step.run(ctx, docs)
		counts[step.name] = n
		if err != nil {
			fmt.Fprintf(out, "%s %s: %d created before failure\n", color.New(color.FgRed).Sprint("✗"), step.name, n)
			return counts, fmt.Errorf("failed to seed %s: %w", step.name, err)
		}
		fmt.Fprintf(out, "%s %s: %d created\n", color.New(color.FgGreen).Sprint("✓"), step.name, n)
	}
	return counts, nil
}

// creator returns a function that creates docs concurrently through repo.
func creator[T interface{ Validate() error }](repo *repository.Repository[T]) func(context.Context, []map[string]any) (int, error) {
	return func(ctx context.Context, docs []map[string]any) (int, error) {
		var created atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(seedConcurrency)

		for i, raw := range docs {
			g.Go(func() error {
				data, err := json.Marshal(raw)
				if err != nil {
					return fmt.Errorf("document %d: %w", i, err)
				}
				var doc T
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("document %d: %w", i, err)
				}
				if err := doc.Validate(); err != nil {
					return fmt.Errorf("document %d: %w", i, err)
				}
				if _, err := repo.Create(gctx, doc); err != nil {
					return fmt.Errorf("document %d: %w", i, err)
				}
				created.Add(1)
				return nil
			})
		}

		err := g.Wait()
		return int(created.Load()), err
	}
}
