package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Index every Markdown file under the docs directory",
	Long: `Walk the docs directory and index every Markdown file.

Unchanged files are skipped unless --force is given. Documents whose files
no longer exist are removed. The command waits for all queued embeddings
before exiting.`,
	RunE: runReindex,
}

var (
	reindexForce bool
	reindexJSON  bool
)

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "Reprocess files even when their content is unchanged")
	reindexCmd.Flags().BoolVar(&reindexJSON, "json", false, "Print the raw JSON result")
}

func runReindex(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	engine.StartQueue()

	ctx := context.Background()
	result, err := engine.Reindex(ctx, reindexForce)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	if err := engine.DrainEmbeddings(ctx); err != nil {
		return fmt.Errorf("embedding queue drain failed: %w", err)
	}

	if reindexJSON {
		return printJSON(result)
	}

	fmt.Printf("Files seen:        %d\n", result.FilesSeen)
	fmt.Printf("Files processed:   %d\n", result.FilesProcessed)
	fmt.Printf("Files skipped:     %d\n", result.FilesSkipped)
	fmt.Printf("Sections created:  %d\n", result.SectionsCreated)
	fmt.Printf("Links resolved:    %d\n", result.LinksResolved)
	fmt.Printf("Links dangling:    %d\n", result.LinksDangling)
	fmt.Printf("Embeddings queued: %d\n", result.EmbeddingsQueued)
	return nil
}
