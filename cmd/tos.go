package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/tos"
)

var tosCmd = &cobra.Command{
	Use:   "tos <robots.csv>",
	Short: "Find and classify the terms of service of every site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = "./document_checked/" + utils.FileBase(args[0]) + "_with_tos.csv"
		}
		e, err := newTosEvaluator()
		if err != nil {
			return err
		}

		ctx, cancel := runContext(cmd)
		defer cancel()
		_, err = tos.Annotate(ctx, e, args[0], out, tos.AnnotateOptions{
			Pacer:   newPacer(),
			Workers: workersFlag(cmd),
			Log:     utils.Log,
		})
		return err
	},
}

func newTosEvaluator() (*tos.Evaluator, error) {
	client, err := newHTTPClient("tos", viper.GetDuration("tos.timeout"))
	if err != nil {
		return nil, err
	}
	return tos.NewEvaluator(client), nil
}

func init() {
	rootCmd.AddCommand(tosCmd)
	tosCmd.Flags().StringP("output", "o", "", "Output CSV (default: ./document_checked/<input>_with_tos.csv)")
	addWorkersFlag(tosCmd)
}
