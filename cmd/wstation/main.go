package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wstation",
	Short: "Weather station BLE client",
	Long: `Command-line client for BLE weather stations that log temperature,
pressure and humidity records:

- Scan for nearby stations
- Read the number of stored records
- Download every stored record as a table, JSON or CSV
- Set the station clock to the current date and time

Settings can be kept in a YAML file passed with --config; flags override it.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("wstation {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(settimeCmd)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("address", "", "Station address; skips the scan")
	flags.String("name", "", "Advertised station name prefix to scan for")
	flags.Duration("timeout", 0, "Per-operation timeout (0 keeps the configured value)")
	flags.String("timezone", "", "Time zone of the station clock (IANA name or Local)")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
