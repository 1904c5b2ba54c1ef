package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/ipc"
)

func newAccountCommand(ctx *commandContext) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the signed-in account",
	}

	accountCmd.AddCommand(newAccountSignInCommand(ctx))
	accountCmd.AddCommand(newAccountSignOutCommand(ctx))
	accountCmd.AddCommand(newAccountShowCommand(ctx))
	accountCmd.AddCommand(newAccountSyncCommand(ctx))
	accountCmd.AddCommand(newAccountDeleteCommand(ctx))

	return accountCmd
}

func newAccountSignInCommand(ctx *commandContext) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "sign-in <identity>",
		Short: "Sign in and restore entitlements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SignIn(identity, email)
				if err != nil {
					return rpcUserError(err)
				}

				account := resp.Account
				// Entitlement sync is best effort; an unconfigured storefront
				// must not block sign-in.
				if syncResp, syncErr := client.SyncEntitlements(); syncErr == nil && syncResp.Account != nil {
					account = *syncResp.Account
				} else if syncErr != nil && ipc.ErrorCode(syncErr) != "configuration" {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: entitlement sync failed: %s\n", ipc.ErrorMessage(syncErr))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Signed in as %s\n", account.Identity)
				printAccountSummary(out, &account)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address to associate with the account")
	return cmd
}

func newAccountSignOutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-out",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SignOut(); err != nil {
					return rpcUserError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newAccountShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Account()
				if err != nil {
					return rpcUserError(err)
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				if !resp.SignedIn || resp.Account == nil {
					fmt.Fprintln(out, "Not signed in (run `reel account sign-in <identity>`)")
					return nil
				}
				fmt.Fprintf(out, "Identity: %s\n", resp.Account.Identity)
				printAccountSummary(out, resp.Account)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newAccountSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile entitlements with the storefront",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SyncEntitlements()
				if err != nil {
					return rpcUserError(err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Entitlements synced")
				if resp.Account != nil {
					printAccountSummary(out, resp.Account)
				}
				return nil
			})
		},
	}
}

func newAccountDeleteCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete all account data held by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("account deletion is permanent; re-run with --yes to confirm")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.DeleteAccount(); err != nil {
					return rpcUserError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Account data deleted")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm permanent deletion")
	return cmd
}

func printAccountSummary(out io.Writer, account *ipc.AccountView) {
	if account == nil {
		return
	}
	if strings.TrimSpace(account.Email) != "" {
		fmt.Fprintf(out, "Email: %s\n", account.Email)
	}
	fmt.Fprintf(out, "Credits: %d\n", account.Credits)
	fmt.Fprintf(out, "Subscription active: %s\n", yesNo(account.SubscriptionActive))
	if account.NextRewardAt != nil {
		fmt.Fprintf(out, "Next weekly reward: %s\n", account.NextRewardAt.Local().Format("2006-01-02 15:04"))
	}
}
