package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zfogg/petfinder/internal/analytics"
	"github.com/zfogg/petfinder/internal/apiclient"
)

func newStatsCommand(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate search statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Stats(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(s)
			}
			a.printer.KeyValue("Total searches", s.TotalSearches)
			a.printer.KeyValue("Unique users", s.UniqueUsers)
			a.printer.KeyValue("Avg results", fmt.Sprintf("%.1f", s.AvgResultCount))
			for _, group := range []struct {
				title string
				terms []termRow
			}{
				{"Top queries", termRows(s.TopQueries)},
				{"Top types", termRows(s.TopTypes)},
				{"Top locations", termRows(s.TopLocations)},
				{"Top breeds", termRows(s.TopBreeds)},
			} {
				if len(group.terms) == 0 {
					continue
				}
				a.printer.Info("%s", group.title)
				rows := make([][]string, 0, len(group.terms))
				for _, t := range group.terms {
					rows = append(rows, []string{t.value, strconv.FormatInt(t.count, 10)})
				}
				a.printer.Table([]string{"VALUE", "COUNT"}, rows)
			}
			return nil
		},
	}
	addRangeFlags(cmd, &from, &to)
	return cmd
}

func newTrendsCommand(a *app) *cobra.Command {
	var from, to, period string
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show search volume over time",
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := a.client.Trends(cmd.Context(), period, from, to)
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(points)
			}
			rows := make([][]string, 0, len(points))
			for _, p := range points {
				top := ""
				if len(p.TopQueries) > 0 {
					top = p.TopQueries[0].Value
				}
				rows = append(rows, []string{
					p.Start.Format("2006-01-02"),
					strconv.FormatInt(p.Count, 10),
					strconv.FormatInt(p.UniqueUsers, 10),
					fmt.Sprintf("%.1f", p.AvgResults),
					top,
				})
			}
			a.printer.Table([]string{"BUCKET", "SEARCHES", "USERS", "AVG RESULTS", "TOP QUERY"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "day", "Bucket size: day, week, month")
	addRangeFlags(cmd, &from, &to)
	return cmd
}

func newEffectivenessCommand(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "effectiveness",
		Short: "Show click-through metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.client.Effectiveness(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(e)
			}
			a.printer.KeyValue("Total searches", e.TotalSearches)
			a.printer.KeyValue("Searches with clicks", e.SearchesWithClicks)
			a.printer.KeyValue("Click-through rate", fmt.Sprintf("%.1f%%", e.ClickThroughRate*100))
			a.printer.KeyValue("Avg click position", fmt.Sprintf("%.2f", e.AverageClickPosition))
			if len(e.ZeroResultQueries) > 0 {
				a.printer.Warning("queries with no results: %v", e.ZeroResultQueries)
			}
			if len(e.HighPerformingQueries) > 0 {
				rows := make([][]string, 0, len(e.HighPerformingQueries))
				for _, q := range e.HighPerformingQueries {
					rows = append(rows, []string{
						q.Query,
						strconv.FormatInt(q.Searches, 10),
						strconv.FormatInt(q.Clicked, 10),
						fmt.Sprintf("%.1f%%", q.CTR*100),
					})
				}
				a.printer.Table([]string{"QUERY", "SEARCHES", "CLICKED", "CTR"}, rows)
			}
			return nil
		},
	}
	addRangeFlags(cmd, &from, &to)
	return cmd
}

func newRebuildCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Drop, recreate and repopulate the pets index",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Rebuild(cmd.Context())
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && apiErr.Status == 409 {
					a.printer.Warning("a rebuild is already running")
				}
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(res)
			}
			a.printer.Success("Rebuilt %s in %s", res.Index, res.Duration)
			if res.Sync != nil {
				a.printer.KeyValue("Indexed", fmt.Sprintf("%d/%d", res.Sync.Indexed, res.Sync.Total))
				a.printer.KeyValue("Failed", res.Sync.Failed)
			}
			return nil
		},
	}
}

func newReindexCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Copy every pet into the existing index",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(res)
			}
			a.printer.Success("Indexed %d/%d pets in %d batches (%s)", res.Indexed, res.Total, res.Batches, res.Duration)
			if res.Failed > 0 {
				a.printer.Warning("%d pets failed to index", res.Failed)
			}
			return nil
		},
	}
}

func newCleanupCommand(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old search analytics events",
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.client.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			if a.printer.JSON() {
				return a.printer.Object(map[string]int64{"deleted": deleted})
			}
			a.printer.Success("Deleted %d analytics events", deleted)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Keep events newer than this many days (default: server retention)")
	return cmd
}

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check search index health",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client.Health(cmd.Context())
			if status == nil {
				return err
			}
			if a.printer.JSON() {
				if perr := a.printer.Object(status); perr != nil {
					return perr
				}
				return err
			}
			a.printer.KeyValue("Status", a.printer.Status(status.Status))
			rows := make([][]string, 0, len(status.Indices))
			for _, idx := range status.Indices {
				rows = append(rows, []string{
					idx.Name,
					strconv.FormatBool(idx.Exists),
					strconv.FormatInt(idx.DocumentCount, 10),
					strconv.FormatBool(idx.NeedsRebuild),
					idx.Error,
				})
			}
			a.printer.Table([]string{"INDEX", "EXISTS", "DOCS", "STALE", "ERROR"}, rows)
			return err
		},
	}
}

func addRangeFlags(cmd *cobra.Command, from, to *string) {
	cmd.Flags().StringVar(from, "from", "", "Start of window (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(to, "to", "", "End of window (RFC3339 or YYYY-MM-DD)")
}

type termRow struct {
	value string
	count int64
}

func termRows(terms []analytics.TermCount) []termRow {
	rows := make([]termRow, 0, len(terms))
	for _, t := range terms {
		rows = append(rows, termRow{value: t.Value, count: t.Count})
	}
	return rows
}
