package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/extract"
	"github.com/sw33tLie/spotscope/pkg/politeness"
)

const (
	minDomainSleep = 600 * time.Millisecond
	minHopDelay    = 500 * time.Millisecond
)

// extractCmd implements: spotscope extract ./final_checked/tickets_final.csv --mode facility
var extractCmd = &cobra.Command{
	Use:   "extract <final.csv>",
	Short: "Extract venue name, address and student price from the pages allowed to be scraped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		mode, _ := cmd.Flags().GetString("mode")
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")
		timeout, _ := cmd.Flags().GetFloat64("timeout")
		sleep, _ := cmd.Flags().GetFloat64("sleep")
		noHop, _ := cmd.Flags().GetBool("no-hop")
		llmOff, _ := cmd.Flags().GetBool("llm-off")
		model, _ := cmd.Flags().GetString("llm-model")
		provider, _ := cmd.Flags().GetString("llm-provider")
		debug, _ := cmd.Flags().GetBool("llm-debug")

		if mode != "facility" && mode != "targets" {
			return fmt.Errorf("unknown mode %q: use facility or targets", mode)
		}
		if out == "" {
			suffix := "_scraped.csv"
			if mode == "targets" {
				suffix = "_targets.csv"
			}
			out = "./scraped/" + utils.FileBase(in) + suffix
		}
		if debug {
			utils.SetLogLevel("debug")
		}
		if provider != "" {
			viper.Set("llm.provider", provider)
		}

		t := viper.GetDuration("extract.timeout")
		if cmd.Flags().Changed("timeout") {
			t = seconds(timeout)
		}
		client, err := newHTTPClient("extract", t)
		if err != nil {
			return err
		}

		perRequest := seconds(sleep)
		opts := extract.Options{
			Hop:      !noHop,
			HopDelay: maxDuration(perRequest, minHopDelay),
		}
		if !llmOff {
			if opts.LLM, err = newLLM(model); err != nil {
				return err
			}
			opts.LLMConcurrency = viper.GetInt("llm.max_concurrency")
		}
		x := extract.New(client, opts)

		ctx, cancel := runContext(cmd)
		defer cancel()
		runOpts := extract.RunOptions{
			Limit: limit,
			Pacer: politeness.NewPacer(maxDuration(perRequest, minDomainSleep), perRequest),
			Log:   utils.Log,
		}
		if mode == "targets" {
			_, err = extract.RunTargets(ctx, x, in, out, runOpts)
		} else {
			_, err = extract.RunFacility(ctx, x, in, out, runOpts)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().String("mode", "facility", "facility: one venue per page; targets: pages listing many venues")
	extractCmd.Flags().String("out", "", "Output CSV (default: ./scraped/<input>_scraped.csv)")
	extractCmd.Flags().Int("limit", 0, "Process at most this many URLs (0 = all)")
	extractCmd.Flags().Float64("timeout", 12, "Request timeout in seconds")
	extractCmd.Flags().Float64("sleep", 0.3, "Seconds to wait before each request")
	extractCmd.Flags().Bool("no-hop", false, "Do not follow price links when the page has no discount")
	extractCmd.Flags().Bool("llm-off", false, "Use the rules only")
	extractCmd.Flags().String("llm-model", "", "Model identifier (default from config)")
	extractCmd.Flags().String("llm-provider", "", "ollama or openai (default from config)")
	extractCmd.Flags().Bool("llm-debug", false, "Log model requests and failures")
}
