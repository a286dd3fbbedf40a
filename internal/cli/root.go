// Package cli holds the toko command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tokostore/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "toko",
	Short: "Toko storefront backend",
	Long: `Toko serves the storefront API: catalog, carts for guests and users,
checkout and the order lifecycle.

Run "toko migrate" once against a fresh database, then "toko serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := setupLogging(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml or ./deploy/config.yaml)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
