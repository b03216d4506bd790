package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lukman83/closeshave/internal/merchant"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/ui"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search products across merchants",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("merchants", nil, "Merchants to search (default: all enabled)")
	cmd.Flags().Int("max-results", models.DefaultResults, "Maximum results (1-100)")
	cmd.Flags().Float64("min-price", 0, "Minimum base price in USD")
	cmd.Flags().Float64("max-price", 0, "Maximum base price in USD")
	cmd.Flags().String("brand", "", "Only keep listings whose title contains this brand")
	cmd.Flags().Bool("in-stock", false, "Drop out-of-stock listings")
	cmd.Flags().String("ip", "", "Client IP used to estimate sales tax")
	cmd.Flags().String("format", "table", "Output format: json, table")
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := searchRequestFromFlags(cmd, strings.Join(args, " "))
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	ctx := cmdContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	total := len(req.Merchants)
	if total == 0 {
		total = len(a.registry.Enabled())
	}
	spin := ui.NewSpinner(cmd.ErrOrStderr())
	tracker := ui.NewMerchantTracker(spin, total)
	spin.Start(fmt.Sprintf("Searching %q on %d merchants...", req.Query, total))
	ctx = merchant.WithProgress(ctx, func(p merchant.Progress) {
		terminal := p.Stage == merchant.StageDone || p.Stage == merchant.StageCached || p.Stage == merchant.StageFailed
		tracker.Report(p.Merchant, p.Stage, terminal)
	})
	resp, err := a.search.Search(ctx, req)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		printSearchResponse(os.Stdout, resp)
	}
	return nil
}

func searchRequestFromFlags(cmd *cobra.Command, query string) (models.SearchRequest, error) {
	flags := cmd.Flags()
	req := models.SearchRequest{Query: query}
	req.Merchants, _ = flags.GetStringSlice("merchants")
	req.MaxResults, _ = flags.GetInt("max-results")
	req.Brand, _ = flags.GetString("brand")
	req.ClientIP, _ = flags.GetString("ip")
	if flags.Changed("min-price") {
		v, _ := flags.GetFloat64("min-price")
		req.MinPrice = &v
	}
	if flags.Changed("max-price") {
		v, _ := flags.GetFloat64("max-price")
		req.MaxPrice = &v
	}
	if v, _ := flags.GetBool("in-stock"); v {
		include := false
		req.IncludeOutOfStock = &include
	}

	// Fail before any browser or cache is opened.
	check := req
	check.Normalize()
	if err := check.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// cmdContext is used by commands that may run without cobra's context.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
