package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdgraph/mdgraph/pkg/types"
)

var relatedCmd = &cobra.Command{
	Use:   "related <doc-id>",
	Short: "List documents connected to a document through the link graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelated,
}

var (
	relatedDepth     int
	relatedLinkTypes []string
	relatedJSON      bool
)

func init() {
	rootCmd.AddCommand(relatedCmd)

	relatedCmd.Flags().IntVar(&relatedDepth, "depth", 0, "Maximum traversal depth (0 = configured default)")
	relatedCmd.Flags().StringSliceVar(&relatedLinkTypes, "link-type", nil, "Restrict traversal to these link types")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "Print the raw JSON result")
}

func runRelated(cmd *cobra.Command, args []string) error {
	var linkTypes []types.LinkType
	for _, lt := range relatedLinkTypes {
		if !types.ValidLinkType(lt) {
			return fmt.Errorf("unknown link type %q", lt)
		}
		linkTypes = append(linkTypes, types.LinkType(lt))
	}

	engine, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	nodes, err := engine.Related(context.Background(), args[0], relatedDepth, linkTypes)
	if err != nil {
		return fmt.Errorf("traversal failed: %w", err)
	}

	if relatedJSON {
		return printJSON(nodes)
	}

	if len(nodes) == 0 {
		fmt.Println("No connected documents.")
		return nil
	}

	for _, node := range nodes {
		fmt.Printf("depth %d  %-8s  %-10s  %s\n", node.Depth, node.Direction, node.LinkType, node.Title)
	}
	return nil
}
