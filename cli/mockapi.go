package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/quickbasket/storefront-go/storefronttest"
)

// NewMockAPICmd creates the "mockapi" subcommand: a local in-memory
// storefront backend with seeded fixtures, for development and demos.
func NewMockAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mockapi",
		Short: "Run a local mock storefront backend",
		Args:  cobra.NoArgs,
		RunE:  runMockAPI,
	}

	cmd.Flags().String("addr", "localhost:8080", "Listen address")

	return cmd
}

func runMockAPI(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	out := cmd.OutOrStdout()

	backend := storefronttest.New()
	backend.SeedDefaults()

	fmt.Fprintf(out, "Mock storefront backend listening on %s\n", addr)
	fmt.Fprintf(out, "  sign in with: storefront login --email %s --password %s\n",
		storefronttest.TestUserEmail, storefronttest.TestUserPassword)

	server := &http.Server{Addr: addr, Handler: backend.Handler()}

	go func() {
		<-cmd.Context().Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return exitError(exitFailure, "mock backend: %v", err)
	}
	return nil
}
