package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timmy/promptmart/internal/app"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/service"
)

type searchOptions struct {
	request domain.SearchRequest
	price   string
	sort    string
	preset  string
	all     bool
	output  string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the catalog",
		Example: `  promptctl search cyberpunk --category midjourney --price free
  promptctl search --preset top-rated -o json
  promptctl search --preset by-category --category chatgpt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.request.Query = args[0]
			}
			opts.request.PriceFilter = domain.PriceFilter(opts.price)
			opts.request.SortBy = domain.SortKey(opts.sort)

			ctx, a, cleanup, err := bootstrap(cmd, root, app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			var results []domain.Prompt
			switch {
			case opts.preset != "":
				results, err = a.Search.Preset(ctx, opts.preset, opts.request.Category)
				if err != nil {
					return fmt.Errorf("%w %q (available: %s)", err, opts.preset, strings.Join(service.PresetNames(), ", "))
				}
			case opts.all:
				results = a.Search.AdminSearch(ctx, opts.request)
			default:
				results = a.Search.Search(ctx, opts.request)
			}

			return writeResults(cmd.OutOrStdout(), opts.output, results)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.request.Category, "category", "", "Category slug")
	f.StringSliceVar(&opts.request.Tags, "tags", nil, "Tags, any of which must match")
	f.StringVar(&opts.price, "price", "all", "Price filter (all, free, paid)")
	f.StringVar(&opts.sort, "sort", "newest", "Sort key (newest, oldest, rating, downloads, views, price-low, price-high)")
	f.IntVar(&opts.request.Limit, "limit", 20, "Maximum results (0 = unlimited)")
	f.StringVar(&opts.preset, "preset", "", "Run a named preset instead of a search")
	f.BoolVar(&opts.all, "all", false, "Include inactive prompts")
	f.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func writeResults(w io.Writer, format string, results []domain.Prompt) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE\tRATING\tDOWNLOADS\tACTIVE")
		for _, p := range results {
			price := "free"
			if !p.IsFree {
				price = fmt.Sprintf("%.2f", p.Price)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%d\t%v\n",
				p.ID, truncate(p.Title, 40), p.Category, price, p.Rating, p.Downloads, p.IsActive)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d results\n", len(results))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
