package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List documents whose source files changed since the last sync",
	Long: `Re-hash every tracked source file and list documents whose sources
changed, disappeared, or were never found.`,
	RunE: runStale,
}

var staleJSON bool

func init() {
	rootCmd.AddCommand(staleCmd)
	staleCmd.Flags().BoolVar(&staleJSON, "json", false, "Print the raw JSON result")
}

func runStale(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, err := engine.StaleDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("staleness check failed: %w", err)
	}

	if staleJSON {
		return printJSON(docs)
	}

	if len(docs) == 0 {
		fmt.Println("All documents are fresh.")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%s  %s  [%s]\n", doc.Staleness, doc.Title, doc.Filepath)
		for _, ref := range doc.StaleRefs {
			fmt.Printf("  %s: %s\n", ref.Reason, ref.SourcePath)
		}
	}
	return nil
}
