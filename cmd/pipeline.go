package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/collector"
	"github.com/sw33tLie/spotscope/pkg/pipeline"
)

// pipelineCmd implements: spotscope pipeline -k "学割 チケット 横浜 site:.jp" -b tickets
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Collect URLs, check robots.txt and terms, and write the final scraping decisions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keywords, _ := cmd.Flags().GetStringArray("keyword")
		basename, _ := cmd.Flags().GetString("basename")
		max, _ := cmd.Flags().GetInt("max-results")
		dir, _ := cmd.Flags().GetString("dir")
		filters, _ := cmd.Flags().GetStringSlice("filter")
		withFilter, _ := cmd.Flags().GetBool("with-filter")

		cfg := pipeline.Config{
			Keywords:   keywords,
			Basename:   basename,
			MaxResults: max,
			Dir:        dir,
			Filters:    filters,
			Pacer:      newPacer(),
			Workers:    workersFlag(cmd),
			Log:        utils.Log,
		}
		var err error
		if cfg.Searcher, err = newSearcher(); err != nil {
			return err
		}
		if cfg.Robots, err = newRobotsEvaluator(); err != nil {
			return err
		}
		if cfg.Tos, err = newTosEvaluator(); err != nil {
			return err
		}
		if withFilter {
			if cfg.Filter, err = newFilter(cmd); err != nil {
				return err
			}
		}

		ctx, cancel := runContext(cmd)
		defer cancel()
		final, err := pipeline.Run(ctx, cfg)
		if err != nil {
			return err
		}
		utils.Log.Infof("Done: %s", final)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.Flags().StringArrayP("keyword", "k", nil, "Search keyword (repeatable)")
	pipelineCmd.Flags().StringP("basename", "b", "tickets", "Base name of the generated files")
	pipelineCmd.Flags().Int("max-results", collector.DefaultMaxResults, "Results to read per keyword")
	pipelineCmd.Flags().String("dir", ".", "Directory the csv/, robot_checked/, document_checked/ and final_checked/ folders are created in")
	pipelineCmd.Flags().StringSlice("filter", collector.DefaultFilters, "Keep hits whose title or snippet contains one of these words")
	pipelineCmd.Flags().Bool("with-filter", false, "Run the URL filter after collection")
	addFilterFlags(pipelineCmd)
	addWorkersFlag(pipelineCmd)
	pipelineCmd.MarkFlagRequired("keyword")
}
