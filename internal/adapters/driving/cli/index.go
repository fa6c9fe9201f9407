package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/render"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
)

var (
	indexRebuild bool
	indexJSON    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the standards knowledge base",
	Long: `Build and inspect the semantic index of the standards corpus.

The index is keyed by a fingerprint of the corpus (file names, sizes and
modification times) together with the chunker and embedding model. An
unchanged corpus reuses the cached index; any change builds a new one.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index if the corpus changed",
	Long: `Loads the cached index for the current corpus, building and saving it
first if none exists. Use --rebuild to ignore the cache.`,
	RunE: runIndexBuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached index for the current corpus",
	RunE:  runIndexStatus,
}

func init() {
	indexBuildCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "rebuild even if a cached index exists")
	indexStatusCmd.Flags().BoolVar(&indexJSON, "json", false, "output status as JSON")
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	svc, settings, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.close()

	cmd.Printf("Indexing %s...\n", settings.CorpusDir)

	build := svc.Knowledge.GetOrBuild
	if indexRebuild {
		build = svc.Knowledge.Rebuild
	}
	status, err := buildWithProgress(cmd, svc.Knowledge, build)
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	render.New(cmd.OutOrStdout()).Status(status)
	return nil
}

// buildWithProgress runs build while reporting elapsed time.
func buildWithProgress(
	cmd *cobra.Command,
	knowledge driving.KnowledgeService,
	build func(context.Context) (domain.KnowledgeStatus, error),
) (domain.KnowledgeStatus, error) {
	type outcome struct {
		status domain.KnowledgeStatus
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		status, err := build(cmd.Context())
		done <- outcome{status, err}
	}()

	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case out := <-done:
			if reported {
				cmd.Println()
			}
			return out.status, out.err
		case <-ticker.C:
			if knowledge.Status().Building {
				cmd.Printf("\rBuilding... %s", time.Since(start).Round(time.Second))
				reported = true
			}
		}
	}
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	svc, _, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.close()

	status, err := svc.Knowledge.Load(cmd.Context())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load index: %w", err)
	}

	if indexJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	render.New(cmd.OutOrStdout()).Status(status)
	if !status.Ready {
		cmd.Println()
		cmd.Println("No index cached for the current corpus. Run 'submittal index build'.")
	}
	return nil
}
