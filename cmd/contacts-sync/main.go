package main

import (
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/logger"
)

var (
	configPath string
	sourcePath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "contacts-sync",
	Short: "Synchronize an address book export into the member store",
	Long: `contacts-sync reads contacts exported from an address book (CSV or XLSX) and creates
one member per contact with a usable email address in the member store.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

// Usage examples on the command line:
// > MEMBERS_API_URL=https://example.supabase.co MEMBERS_API_KEY=... go run . preview --csv contacts.csv
// > go run . upload --config config.yaml --csv contacts.csv
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&sourcePath, "csv", "c", "", "address book export to read (overrides source.path)")
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(uploadCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadFromEnv(configPath)
	if err != nil {
		return err
	}
	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetRedactPII(*cfg.Log.RedactPII)
	return nil
}
