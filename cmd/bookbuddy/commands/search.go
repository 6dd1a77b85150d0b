// ABOUTME: CLI command to search passages across uploaded books
// ABOUTME: Prints blended scores alongside raw vector similarity
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/search"
)

var (
	searchLimit         int
	searchDocument      string
	searchAuthor        string
	searchMinSimilarity float64
	searchMinPage       int
	searchMaxPage       int
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search passages in your books",
		Long: `Search passages by meaning. Results are ranked by a blend of vector
similarity and word overlap with the query.

Examples:
  bookbuddy search "the picnic at Box Hill"
  bookbuddy search --limit 10 --author Austen "marriage and money"
  bookbuddy search --document 3f1c... --min-page 40 --max-page 80 "letters"
  bookbuddy search --format json "Harriet Smith"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")
	cmd.Flags().StringVar(&searchDocument, "document", "", "Restrict to one document ID")
	cmd.Flags().StringVar(&searchAuthor, "author", "", "Only books whose author contains this text")
	cmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0, "Minimum vector similarity 0-1 (default from config)")
	cmd.Flags().IntVar(&searchMinPage, "min-page", 0, "First page to include")
	cmd.Flags().IntVar(&searchMaxPage, "max-page", 0, "Last page to include")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	if searchMinSimilarity < 0 || searchMinSimilarity > 1 {
		return fmt.Errorf("min-similarity must be between 0 and 1, got %f", searchMinSimilarity)
	}

	query := strings.Join(args, " ")

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	opts := search.Options{
		DocumentID: searchDocument,
		Limit:      searchLimit,
		Author:     searchAuthor,
		MinPage:    searchMinPage,
		MaxPage:    searchMaxPage,
	}
	if cmd.Flags().Changed("min-similarity") {
		opts.MinSimilarity = search.Threshold(searchMinSimilarity)
	}

	results, err := a.search.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("searching passages: %w", err)
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), results)
	}

	if len(results) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No passages found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tSIM\tBOOK\tPAGE\tPASSAGE\n")
	fmt.Fprintf(w, "-----\t---\t----\t----\t-------\n")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%.3f\t%s\t%s\t%s\n",
			r.Score,
			r.VectorSimilarity,
			truncate(r.DocumentTitle, 25),
			pageLabel(r.Page),
			truncate(strings.Join(strings.Fields(r.Text), " "), 60))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d passage(s)\n", len(results))
	}
	return nil
}
