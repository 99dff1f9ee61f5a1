package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/collector"
)

// collectCmd implements: spotscope collect -k "学割 site:.jp" -o ./csv/tickets.csv
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Search the web for candidate pages and save title,url,snippet rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keywords, _ := cmd.Flags().GetStringArray("keyword")
		out, _ := cmd.Flags().GetString("output")
		max, _ := cmd.Flags().GetInt("max-results")
		filters, _ := cmd.Flags().GetStringSlice("filter")

		ctx, cancel := runContext(cmd)
		defer cancel()

		searcher, err := newSearcher()
		if err != nil {
			return err
		}
		_, err = collector.Run(ctx, searcher, keywords, out, collector.Options{
			MaxResults: max,
			Filters:    filters,
			Log:        utils.Log,
		})
		return err
	},
}

func newSearcher() (collector.Searcher, error) {
	client, err := newHTTPClient("search", 15*time.Second)
	if err != nil {
		return nil, err
	}
	return collector.NewDuckDuckGo(client, viper.GetString("search.endpoint")), nil
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringArrayP("keyword", "k", nil, "Search keyword (repeatable)")
	collectCmd.Flags().StringP("output", "o", "./csv/urls.csv", "Output CSV")
	collectCmd.Flags().Int("max-results", collector.DefaultMaxResults, "Results to read per keyword")
	collectCmd.Flags().StringSlice("filter", collector.DefaultFilters, "Keep hits whose title or snippet contains one of these words")
	collectCmd.MarkFlagRequired("keyword")
}
