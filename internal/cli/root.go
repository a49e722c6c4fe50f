// Package cli implements the petfinder operator command line against the
// search HTTP API.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zfogg/petfinder/internal/apiclient"
	"github.com/zfogg/petfinder/internal/logger"
)

// app carries per-invocation state shared by the subcommands
type app struct {
	client  *apiclient.Client
	printer *Printer
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		apiURL     string
		outputFmt  string
		userID     string
		verbose    bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:           "petfinder",
		Short:         "Petfinder search operator CLI",
		Long:          "Query, inspect and maintain the petfinder search service from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger.InitializeConsole(level)

			v := viper.New()
			_ = v.BindPFlag("api.base_url", cmd.Flags().Lookup("api"))
			_ = v.BindPFlag("output.format", cmd.Flags().Lookup("output"))
			_ = v.BindPFlag("user_id", cmd.Flags().Lookup("user"))

			settings, err := LoadSettings(v, configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !ValidFormat(settings.Format) {
				return fmt.Errorf("invalid output format %q (text, json, table)", settings.Format)
			}

			a.client = apiclient.New(settings.BaseURL, settings.Timeout)
			a.client.SetUserID(settings.UserID)
			a.printer = NewPrinter(cmd.OutOrStdout(), settings.Format)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/petfinder/cli.toml)")
	flags.StringVar(&apiURL, "api", "http://localhost:8787", "Search API base URL")
	flags.StringVarP(&outputFmt, "output", "o", FormatText, "Output format: text, json, table")
	flags.StringVar(&userID, "user", "", "User ID to attribute searches to")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(
		newSearchCommand(a),
		newSimilarCommand(a),
		newSuggestCommand(a),
		newClickCommand(a),
		newStatsCommand(a),
		newTrendsCommand(a),
		newEffectivenessCommand(a),
		newRebuildCommand(a),
		newReindexCommand(a),
		newCleanupCommand(a),
		newHealthCommand(a),
	)
	return root
}
