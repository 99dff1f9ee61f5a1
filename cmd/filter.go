package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/filter"
	"github.com/sw33tLie/spotscope/pkg/llm"
)

var filterCmd = &cobra.Command{
	Use:   "filter <urls.csv>",
	Short: "Drop search hits that are not venue, ticket or pricing pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = filepath.Join(filepath.Dir(in), utils.FileBase(in)+"_filtered.csv")
		}
		f, err := newFilter(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := runContext(cmd)
		defer cancel()
		_, err = f.Run(ctx, in, out)
		return err
	},
}

// newFilter reads the --llm, --llm-model and --batch flags of cmd.
func newFilter(cmd *cobra.Command) (*filter.Filter, error) {
	useLLM, _ := cmd.Flags().GetBool("llm")
	model, _ := cmd.Flags().GetString("llm-model")
	batch, _ := cmd.Flags().GetInt("batch")

	var client llm.Client
	if useLLM {
		c, err := newLLM(model)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return filter.New(client, batch, utils.Log), nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("llm", false, "Ask the model instead of using the rules")
	cmd.Flags().String("llm-model", "", "Model used with --llm (default from config)")
	cmd.Flags().Int("batch", filter.DefaultBatchSize, "Rows per model request")
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().StringP("output", "o", "", "Output CSV (default: <input>_filtered.csv)")
	addFilterFlags(filterCmd)
}
