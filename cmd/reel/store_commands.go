package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reel/internal/billing"
	"reel/internal/ipc"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Browse and buy storefront products",
	}

	storeCmd.AddCommand(newStoreCatalogCommand(ctx))
	storeCmd.AddCommand(newStoreBuyCommand(ctx))

	return storeCmd
}

func newStoreCatalogCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List purchasable products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Catalog()
				if err != nil {
					return rpcUserError(err)
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				if len(resp.Products) == 0 {
					fmt.Fprintln(out, "No products available")
					return nil
				}

				rows := make([][]string, 0, len(resp.Products))
				for _, product := range resp.Products {
					credits := ""
					if product.Credits > 0 {
						credits = fmt.Sprintf("%d", product.Credits)
					}
					rows = append(rows, []string{
						product.ID,
						product.DisplayName,
						productKindLabel(product.Kind),
						product.Price,
						credits,
					})
				}
				table := renderTable(
					[]string{"ID", "Name", "Type", "Price", "Credits"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprintln(out, table)
				fmt.Fprintln(out, "Buy with `reel store buy <id>`")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newStoreBuyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <product-id>",
		Short: "Purchase a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Purchase(productID)
				if err != nil {
					return rpcUserError(err)
				}

				out := cmd.OutOrStdout()
				switch billing.Outcome(resp.Outcome) {
				case billing.OutcomeSuccess:
					fmt.Fprintln(out, "Purchase complete")
					printAccountSummary(out, resp.Account)
				case billing.OutcomePending:
					fmt.Fprintln(out, "Purchase pending; credits apply once the storefront verifies the transaction")
				case billing.OutcomeCancelled:
					fmt.Fprintln(out, "Purchase cancelled")
				case billing.OutcomeUnverified:
					fmt.Fprintln(out, "Purchase could not be verified; run `reel account sync` to retry")
				default:
					if strings.TrimSpace(resp.Message) != "" {
						fmt.Fprintln(out, resp.Message)
					} else {
						fmt.Fprintf(out, "Purchase returned outcome %q\n", resp.Outcome)
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func productKindLabel(kind string) string {
	label := strings.ReplaceAll(strings.TrimSpace(kind), "_", " ")
	if label == "" {
		return ""
	}
	return cases.Title(language.English).String(label)
}
