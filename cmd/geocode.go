package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <catalog.csv>",
	Short: "Fill lat/lon from the address column using Google Geocoding and a local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		if out == "" {
			out = "./scraped/" + utils.FileBase(args[0]) + "_geocoded.csv"
		}

		var g geocode.Geocoder
		if key := viper.GetString("geocode.api_key"); key != "" {
			client, err := newHTTPClient("geocode", 12*time.Second)
			if err != nil {
				return err
			}
			sleep := viper.GetDuration("geocode.sleep")
			if cmd.Flags().Changed("sleep") {
				secs, _ := cmd.Flags().GetFloat64("sleep")
				sleep = seconds(secs)
			}
			g = geocode.NewGoogleGeocoder(client, key, "", sleep)
		} else {
			utils.Log.Warn("No Google Maps API key (GOOGLE_MAPS_API_KEY): only cached addresses will be filled")
		}

		ctx, cancel := runContext(cmd)
		defer cancel()
		dbPath, err := cachePath(cmd)
		if err != nil {
			return err
		}
		_, err = geocode.Run(ctx, g, dbPath, args[0], out, geocode.Options{
			Overwrite: overwrite,
			Log:       utils.Log,
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	geocodeCmd.Flags().String("out", "", "Output CSV (default: ./scraped/<input>_geocoded.csv)")
	geocodeCmd.Flags().Bool("overwrite", false, "Replace coordinates that are already present")
	geocodeCmd.Flags().String("api-key", "", "Google Geocoding API key")
	geocodeCmd.Flags().Float64("sleep", 0.15, "Seconds between API requests")
	geocodeCmd.Flags().String("dbpath", "", "Geocode cache (default ~/.config/spotscope/geocode.sqlite)")
	viper.BindPFlag("geocode.api_key", geocodeCmd.Flags().Lookup("api-key"))
}
