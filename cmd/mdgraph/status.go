package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus, index, and queue statistics",
	RunE:  runStatus,
}

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw JSON status")
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	status, err := engine.Status(context.Background())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if statusJSON {
		return printJSON(status)
	}

	fmt.Printf("Documents:          %d\n", status.Documents)
	fmt.Printf("Sections:           %d (%d embedded)\n", status.Sections, status.SectionsEmbedded)
	fmt.Printf("Links:              %d (%d resolved, %d dangling)\n", status.Links, status.LinksResolved, status.LinksDangling)
	fmt.Printf("Vector index size:  %d\n", status.IndexSize)
	fmt.Printf("Queue:              %d pending, %d completed\n", status.QueuePending, status.QueueCompleted)
	fmt.Printf("Source refs:        %d (%d stale)\n", status.RefsTotal, status.RefsStale)

	if ambiguous := engine.AmbiguousLinks(); len(ambiguous) > 0 {
		fmt.Printf("\nAmbiguous names:\n")
		for _, name := range ambiguous {
			fmt.Printf("  %s -> %v\n", name.Name, name.Candidates)
		}
	}
	return nil
}
