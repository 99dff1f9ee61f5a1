package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/llm"
	"github.com/sw33tLie/spotscope/pkg/metrics"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/whttp"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `                 _
 ___ _ __   ___ | |_ ___  ___ ___  _ __   ___
/ __| '_ \ / _ \| __/ __|/ __/ _ \| '_ \ / _ \
\__ \ |_) | (_) | |_\__ \ (_| (_) | |_) |  __/
|___/ .__/ \___/ \__|___/\___\___/| .__/ \___|
    |_|                           |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spotscope",
	Short: "Find student discounts on venue sites you are allowed to scrape.",
	Long: LOGO + `spotscope collects candidate venue pages, checks robots.txt and the terms of service of every site,
and extracts names, addresses and student prices from the pages that may be scraped.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.spotscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (example: :9090)")
	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}

func setDefaults() {
	viper.SetDefault("http.user_agent", whttp.DefaultUserAgent)
	viper.SetDefault("http.proxy", "")
	viper.SetDefault("politeness.new_domain", politeness.DefaultNewDomain.String())
	viper.SetDefault("politeness.same_domain", politeness.DefaultSameDomain.String())
	viper.SetDefault("workers", 1)

	viper.SetDefault("search.endpoint", "")
	viper.SetDefault("robots.timeout", "10s")
	viper.SetDefault("robots.user_agent", "*")
	viper.SetDefault("tos.timeout", "12s")
	viper.SetDefault("extract.timeout", "12s")

	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.endpoint", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.timeout", "120s")
	viper.SetDefault("llm.max_concurrency", llm.DefaultMaxConcurrency)

	viper.SetDefault("geocode.api_key", "")
	viper.SetDefault("geocode.db_path", "")
	viper.SetDefault("geocode.sleep", "150ms")

	viper.SetDefault("metrics.addr", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// API keys usually live in a .env next to the data
	_ = godotenv.Load()

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".spotscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("spotscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("llm.api_key", "SPOTSCOPE_LLM_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("geocode.api_key", "SPOTSCOPE_GEOCODE_API_KEY", "GOOGLE_MAPS_API_KEY")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.spotscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// runContext is cancelled on SIGINT/SIGTERM and serves metrics while it lives.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	metrics.Serve(ctx, viper.GetString("metrics.addr"))
	return ctx, cancel
}

func newHTTPClient(kind string, timeout time.Duration) (*whttp.Client, error) {
	return whttp.NewClient(whttp.Options{
		Kind:      kind,
		Timeout:   timeout,
		UserAgent: viper.GetString("http.user_agent"),
		Proxy:     viper.GetString("http.proxy"),
	})
}

func newPacer() *politeness.Pacer {
	return politeness.NewPacer(viper.GetDuration("politeness.new_domain"), viper.GetDuration("politeness.same_domain"))
}

// newLLM builds the model client from the llm.* settings; model overrides llm.model when set.
func newLLM(model string) (llm.Client, error) {
	if model == "" {
		model = viper.GetString("llm.model")
	}
	return llm.New(llm.Config{
		Provider:       viper.GetString("llm.provider"),
		APIKey:         viper.GetString("llm.api_key"),
		Model:          model,
		Endpoint:       viper.GetString("llm.endpoint"),
		Timeout:        viper.GetDuration("llm.timeout"),
		MaxConcurrency: viper.GetInt("llm.max_concurrency"),
	})
}

// seconds converts a float seconds flag to a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
