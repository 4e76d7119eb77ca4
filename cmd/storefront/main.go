package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quickbasket/storefront-go/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront client CLI",
	Long:  "storefront is a CLI for browsing the catalog, managing the cart, and handling sessions against a storefront backend.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default: ./storefront.yaml, then ~/.storefront/config.yaml)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("storefront version %s\n", version))

	rootCmd.AddCommand(cli.NewLoginCmd())
	rootCmd.AddCommand(cli.NewLogoutCmd())
	rootCmd.AddCommand(cli.NewWhoamiCmd())
	rootCmd.AddCommand(cli.NewRegisterCmd())
	rootCmd.AddCommand(cli.NewOnboardCmd())
	rootCmd.AddCommand(cli.NewCatalogCmd())
	rootCmd.AddCommand(cli.NewCartCmd())
	rootCmd.AddCommand(cli.NewWatchCmd())
	rootCmd.AddCommand(cli.NewMockAPICmd())
}
