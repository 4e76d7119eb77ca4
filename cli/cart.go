package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quickbasket/storefront-go/cart"
	"github.com/quickbasket/storefront-go/client"
)

// NewCartCmd creates the "cart" command group. Every subcommand operates
// on the signed-in user's cart and reconciles against the backend.
func NewCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "View and modify the shopping cart",
	}

	cmd.AddCommand(newCartShowCmd())
	cmd.AddCommand(newCartAddCmd())
	cmd.AddCommand(newCartSetCmd())
	cmd.AddCommand(newCartRemoveCmd())
	cmd.AddCommand(newCartClearCmd())

	return cmd
}

// cartApp builds the app, requires auth, and loads the remote cart.
func cartApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true, toasts: true})
	if err != nil {
		return nil, err
	}
	if err := a.requireAuth(); err != nil {
		a.Close(cmd.Context())
		return nil, err
	}
	if err := a.cart.LoadCart(cmd.Context()); err != nil {
		a.Close(cmd.Context())
		return nil, cartError(err)
	}
	return a, nil
}

func newCartShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cartApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			out := cmd.OutOrStdout()
			snapshot := a.cart.Snapshot()
			if len(snapshot.Lines) == 0 {
				fmt.Fprintln(out, "Cart is empty")
				return nil
			}

			for _, l := range snapshot.Lines {
				fmt.Fprintf(out, "%s  %-30s x%-3d %10s\n", l.ID, l.Product.Name, l.Quantity, l.Product.Price.Mul(l.Quantity))
			}
			fmt.Fprintf(out, "%d items, subtotal %s\n", snapshot.ItemCount(), snapshot.Subtotal())
			return nil
		},
	}
}

func newCartAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := uuid.Parse(args[0])
			if err != nil {
				return exitError(exitFailure, "invalid product id %q", args[0])
			}
			quantity := 1
			if len(args) == 2 {
				quantity, err = strconv.Atoi(args[1])
				if err != nil {
					return exitError(exitFailure, "invalid quantity %q", args[1])
				}
			}

			a, err := cartApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			product, err := a.catalog.Product(cmd.Context(), productID)
			if err != nil {
				return catalogError(err)
			}

			line, err := a.cart.AddItem(cmd.Context(), product, quantity)
			if err != nil {
				return cartError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s x%d (line %s)\n", product.Name, line.Quantity, line.ID)
			return nil
		},
	}
}

func newCartSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <line-id> <quantity>",
		Short: "Set a cart line's quantity (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return exitError(exitFailure, "invalid quantity %q", args[1])
			}

			a, err := cartApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if err := a.cart.UpdateQuantity(cmd.Context(), args[0], quantity); err != nil {
				return cartError(err)
			}

			if quantity <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Line removed")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Quantity set to %d\n", quantity)
			}
			return nil
		},
	}
}

func newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <line-id>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cartApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if err := a.cart.RemoveItem(cmd.Context(), args[0]); err != nil {
				return cartError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Line removed")
			return nil
		},
	}
}

func newCartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cartApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if err := a.cart.ClearCart(cmd.Context()); err != nil {
				return cartError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared")
			return nil
		},
	}
}

func cartError(err error) error {
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		return exitError(exitNotFound, "%v", err)
	case errors.Is(err, cart.ErrInvalidQuantity):
		return exitError(exitFailure, "%v", err)
	case client.IsAuthExpired(err):
		return exitError(exitAuth, "session expired, sign in again")
	case client.IsValidation(err):
		var apiErr *client.APIError
		if client.AsAPIError(err, &apiErr) {
			return exitError(exitFailure, "rejected: %s", apiErr.Message)
		}
		return exitError(exitFailure, "rejected: %v", err)
	case client.IsNetwork(err):
		return exitError(exitFailure, "backend unreachable, cart unchanged: %v", err)
	default:
		return exitError(exitFailure, "%v", err)
	}
}
