package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the geocode cache database",
}

// cachePath resolves --dbpath, falling back to geocode.db_path.
func cachePath(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("dbpath") {
		p, _ := cmd.Flags().GetString("dbpath")
		return utils.CachePath(p)
	}
	return utils.CachePath(viper.GetString("geocode.db_path"))
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cachePath(cmd)
		if err != nil {
			return err
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the cached addresses.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cachePath(cmd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return err
		}
		if stats.Entries == 0 {
			fmt.Println("No addresses cached yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "PATH\t%s\t\n", dbPath)
		fmt.Fprintf(w, "ENTRIES\t%d\t\n", stats.Entries)
		fmt.Fprintf(w, "OLDEST\t%s\t\n", stats.Oldest.Format(time.RFC3339))
		fmt.Fprintf(w, "NEWEST\t%s\t\n", stats.Newest.Format(time.RFC3339))
		return w.Flush()
	},
}

// forgetCmd represents the forget command
var forgetCmd = &cobra.Command{
	Use:   "forget <address>...",
	Short: "Remove addresses from the cache so the next run looks them up again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cachePath(cmd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}
		lock, err := utils.NewCacheLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.Acquire(cmd.Context()); err != nil {
			return err
		}
		defer lock.Release()

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		for _, addr := range args {
			if err := db.DeleteGeocode(cmd.Context(), addr); err != nil {
				return err
			}
			utils.Log.Infof("Forgot %s", addr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(forgetCmd)
	dbCmd.PersistentFlags().String("dbpath", "", "Path to the geocode cache (default ~/.config/spotscope/geocode.sqlite)")
}
