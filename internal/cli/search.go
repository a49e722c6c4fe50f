package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/petfinder/internal/search"
	"github.com/zfogg/petfinder/internal/suggestions"
)

// searchFilterFlags are passed through verbatim when set
var searchFilterFlags = []string{
	"type", "status", "breed", "location", "size", "gender", "color",
	"sort_by", "sort_order", "lat", "lon", "radius_km",
}

func newSearchCommand(a *app) *cobra.Command {
	var (
		page, limit int
		fuzzy       bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search lost and found pets",
		Args:  cobra.MaximumNArgs(1),
		Example: `  petfinder search "golden retriever" --status lost
  petfinder search --type cat --lat 40.71 --lon -74.00 --radius_km 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{}
			if len(args) == 1 {
				params["q"] = args[0]
			}
			for _, name := range searchFilterFlags {
				if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
					params[name] = f.Value.String()
				}
			}
			if page > 0 {
				params["page"] = strconv.Itoa(page)
			}
			if limit > 0 {
				params["limit"] = strconv.Itoa(limit)
			}
			if cmd.Flags().Changed("fuzzy") {
				params["fuzzy"] = strconv.FormatBool(fuzzy)
			}

			res, err := a.client.SearchPets(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(res)
			}

			a.printer.Info("%d pets found (page %d, %dms)", res.Total, res.Page, res.Took)
			a.printer.Table(hitHeaders, hitRows(res.Hits))
			if res.EventID != "" {
				a.printer.KeyValue("event", res.EventID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	for _, name := range searchFilterFlags {
		f.String(name, "", "Filter by "+strings.ReplaceAll(name, "_", " "))
	}
	f.IntVar(&page, "page", 0, "Page number (1-based)")
	f.IntVar(&limit, "limit", 0, "Results per page")
	f.BoolVar(&fuzzy, "fuzzy", true, "Tolerate typos in the query")
	return cmd
}

func newSimilarCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "similar <pet-id>",
		Short: "Find pets similar to a given pet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.SimilarPets(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(res)
			}
			a.printer.Table(hitHeaders, hitRows(res.Hits))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of similar pets")
	return cmd
}

func newSuggestCommand(a *app) *cobra.Command {
	var (
		limit    int
		category string
		smart    bool
	)
	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Show search suggestions for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if smart {
				res, err := a.client.SmartSuggestions(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if a.printer.JSON() {
					return a.printer.Object(res)
				}
				a.printSuggestions("Autocomplete", res.AutoComplete)
				a.printSuggestions("Popular", res.Popular)
				a.printSuggestions("Related", res.Related)
				if len(res.History) > 0 {
					a.printSuggestions("History", res.History)
				}
				return nil
			}

			var (
				out []suggestions.Suggestion
				err error
			)
			if category != "" {
				out, err = a.client.CategorySuggestions(ctx, category, args[0], limit)
			} else {
				out, err = a.client.Suggestions(ctx, args[0], limit)
			}
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(out)
			}
			a.printSuggestions("", out)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 10, "Maximum number of suggestions")
	f.StringVar(&category, "category", "", "Restrict to one category (name, breed, location, type)")
	f.BoolVar(&smart, "smart", false, "Show autocomplete, popular and related groups")
	return cmd
}

func (a *app) printSuggestions(title string, items []suggestions.Suggestion) {
	if title != "" {
		a.printer.Info("%s", title)
	}
	if len(items) == 0 {
		a.printer.Warning("no suggestions")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, s := range items {
		rows = append(rows, []string{s.Text, fmt.Sprintf("%.2f", s.Score), s.Source})
	}
	a.printer.Table([]string{"TEXT", "SCORE", "SOURCE"}, rows)
}

func newClickCommand(a *app) *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "click <event-id> <pet-id>",
		Short: "Record a click on a search result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.RecordClick(cmd.Context(), args[0], args[1], position); err != nil {
				return err
			}
			a.printer.Success("Recorded click on %s at position %d", args[1], position)
			return nil
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "Zero-based position of the pet in the results")
	return cmd
}

var hitHeaders = []string{"ID", "NAME", "TYPE", "BREED", "STATUS", "CITY", "SCORE"}

func hitRows(hits []search.SearchHit) [][]string {
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		d := h.Source
		rows = append(rows, []string{
			h.ID, d.Name, d.Type, d.Breed, d.Status, d.LastSeenCity,
			fmt.Sprintf("%.2f", h.Score),
		})
	}
	return rows
}
