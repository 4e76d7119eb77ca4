package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
)

// NewCatalogCmd creates the "catalog" command group.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the product catalog",
	}

	cmd.AddCommand(newCategoriesCmd())
	cmd.AddCommand(newProductsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			categories, err := a.catalog.Categories(cmd.Context())
			if err != nil {
				return catalogError(err)
			}

			for _, c := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", c.ID, c.Name)
			}
			return nil
		},
	}
}

func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products <category-id>",
		Short: "List products in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := uuid.Parse(args[0])
			if err != nil {
				return exitError(exitFailure, "invalid category id %q", args[0])
			}
			configPath, _ := cmd.Flags().GetString("config")
			inStock, _ := cmd.Flags().GetBool("in-stock")
			sortBy, _ := cmd.Flags().GetString("sort")

			a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			var products []domain.Product
			if inStock || sortBy != "" {
				products, err = a.catalog.Filter(cmd.Context(), domain.ProductFilter{
					CategoryID:  categoryID,
					InStockOnly: inStock,
					SortBy:      sortBy,
				})
			} else {
				products, err = a.catalog.ProductsByCategory(cmd.Context(), categoryID)
			}
			if err != nil {
				return catalogError(err)
			}

			printProducts(cmd.OutOrStdout(), products)
			return nil
		},
	}

	cmd.Flags().Bool("in-stock", false, "Only show products in stock")
	cmd.Flags().String("sort", "", "Sort order: price-asc | price-desc | name")

	return cmd
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search products by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			products, err := a.catalog.Search(cmd.Context(), args[0])
			if err != nil {
				return catalogError(err)
			}

			if len(products) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No products found")
				return nil
			}
			printProducts(cmd.OutOrStdout(), products)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := uuid.Parse(args[0])
			if err != nil {
				return exitError(exitFailure, "invalid product id %q", args[0])
			}
			configPath, _ := cmd.Flags().GetString("config")

			a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			product, err := a.catalog.Product(cmd.Context(), productID)
			if err != nil {
				return catalogError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", product.Name)
			fmt.Fprintf(out, "  price: %s\n", product.Price)
			fmt.Fprintf(out, "  stock: %d\n", product.StockQuantity)

			reviews, err := a.api.ProductReviews(cmd.Context(), productID)
			if err == nil && len(reviews) > 0 {
				fmt.Fprintf(out, "  reviews:\n")
				for _, r := range reviews {
					fmt.Fprintf(out, "    %d/5  %s\n", r.Rating, r.Comment)
				}
			}
			return nil
		},
	}
}

func printProducts(w io.Writer, products []domain.Product) {
	for _, p := range products {
		stock := fmt.Sprintf("%d in stock", p.StockQuantity)
		if p.StockQuantity < 1 {
			stock = "out of stock"
		}
		fmt.Fprintf(w, "%s  %-30s %10s  (%s)\n", p.ID, p.Name, p.Price, stock)
	}
}

func catalogError(err error) error {
	switch {
	case client.IsNotFound(err):
		return exitError(exitNotFound, "%v", err)
	case client.IsNetwork(err):
		return exitError(exitFailure, "backend unreachable: %v", err)
	default:
		return exitError(exitFailure, "%v", err)
	}
}
