package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdgraph/mdgraph/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed corpus",
	Long: `Search the indexed corpus with hybrid ranking.

Results are ranked by a blend of vector similarity, link-graph proximity,
and fulltext relevance. When no embeddings are available the search degrades
to pure fulltext matching.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var (
	searchLimit     int
	searchDepth     int
	searchDocType   string
	searchLinkTypes []string
	searchJSON      bool
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of results (0 = configured default)")
	searchCmd.Flags().IntVar(&searchDepth, "depth", 0, "Graph traversal depth (0 = configured default)")
	searchCmd.Flags().StringVar(&searchDocType, "doc-type", "", "Filter results by document type")
	searchCmd.Flags().StringSliceVar(&searchLinkTypes, "link-type", nil, "Restrict graph traversal to these link types")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the raw JSON response")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchDocType != "" && !types.ValidDocType(searchDocType) {
		return fmt.Errorf("unknown doc type %q", searchDocType)
	}
	var linkTypes []types.LinkType
	for _, lt := range searchLinkTypes {
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

	out, err := engine.Search(context.Background(), types.SearchRequest{
		Query:     strings.Join(args, " "),
		Limit:     searchLimit,
		Depth:     searchDepth,
		DocType:   types.DocType(searchDocType),
		LinkTypes: linkTypes,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(out)
	}

	if len(out.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	fmt.Printf("%d of %d results (%s)\n\n", len(out.Results), out.TotalFound, out.SearchType)
	for i, r := range out.Results {
		fmt.Printf("%2d. %.3f  %s  [%s]\n", i+1, r.Score, r.Title, r.Filepath)
		fmt.Printf("    %s", r.RelevanceReason)
		if r.Staleness != types.StalenessFresh {
			fmt.Printf("  (%s)", r.Staleness)
		}
		fmt.Println()
		for _, sec := range r.Sections {
			heading := sec.Heading
			if heading == "" {
				heading = "(intro)"
			}
			fmt.Printf("    - %s\n", heading)
		}
		fmt.Println()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
