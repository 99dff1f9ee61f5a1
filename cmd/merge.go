package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/permission"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <robots.csv> <tos.csv>",
	Short: "Combine robots and terms verdicts into scraping_allowed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = "./final_checked/" + utils.FileBase(args[0]) + "_final.csv"
		}
		final, err := permission.MergeFiles(args[0], args[1], out)
		if err != nil {
			return err
		}
		utils.Log.Infof("Saved scraping decisions to %s", final)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringP("output", "o", "", "Output CSV (default: ./final_checked/<robots>_final.csv)")
}
