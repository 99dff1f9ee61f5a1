package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <scraped.csv>",
	Short: "Convert extraction output to the catalog import format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		prefix, _ := cmd.Flags().GetString("id-prefix")
		start, _ := cmd.Flags().GetInt("start-id")
		pad, _ := cmd.Flags().GetInt("zero-pad")

		n, err := catalog.Run(args[0], out, catalog.Options{IDPrefix: prefix, StartID: start, ZeroPad: pad})
		if err != nil {
			return err
		}
		utils.Log.Infof("Converted %d rows to %s", n, out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().String("out", "./converted_csv/catalog.csv", "Output CSV")
	catalogCmd.Flags().String("id-prefix", "", "Prefix of every id (example: item_)")
	catalogCmd.Flags().Int("start-id", 1, "Id of the first row")
	catalogCmd.Flags().Int("zero-pad", 0, "Zero-pad the numeric part of ids to this many digits")
}
