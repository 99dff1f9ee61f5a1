package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/robots"
)

var robotsCmd = &cobra.Command{
	Use:   "robots <urls.csv>",
	Short: "Annotate every URL with its robots.txt verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = "./robot_checked/" + utils.FileBase(args[0]) + "_with_robots.csv"
		}
		e, err := newRobotsEvaluator()
		if err != nil {
			return err
		}

		ctx, cancel := runContext(cmd)
		defer cancel()
		_, err = robots.Annotate(ctx, e, args[0], out, robots.AnnotateOptions{
			Pacer:   newPacer(),
			Workers: workersFlag(cmd),
			Log:     utils.Log,
		})
		return err
	},
}

func newRobotsEvaluator() (*robots.Evaluator, error) {
	client, err := newHTTPClient("robots", viper.GetDuration("robots.timeout"))
	if err != nil {
		return nil, err
	}
	return robots.NewEvaluator(client, viper.GetString("robots.user_agent")), nil
}

func init() {
	rootCmd.AddCommand(robotsCmd)
	robotsCmd.Flags().StringP("output", "o", "", "Output CSV (default: ./robot_checked/<input>_with_robots.csv)")
	addWorkersFlag(robotsCmd)
}

func addWorkersFlag(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 1, "Rows checked concurrently (default from config)")
}

// workersFlag prefers an explicit --workers over the workers config key.
func workersFlag(cmd *cobra.Command) int {
	if cmd.Flags().Changed("workers") {
		n, _ := cmd.Flags().GetInt("workers")
		return n
	}
	return viper.GetInt("workers")
}
