package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/daemonctl"
	"reel/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the reel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the reel daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon services...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, account, and generation status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, checks, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range checks {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}

			if statusResp.SignedIn && statusResp.Account != nil {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Account", colorize) {
					fmt.Fprintln(stdout, line)
				}
				printAccountLines(stdout, statusResp.Account, colorize)
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Generation", colorize) {
				fmt.Fprintln(stdout, line)
			}
			printGenerationLines(stdout, statusResp, colorize)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func printAccountLines(out io.Writer, account *ipc.AccountView, colorize bool) {
	fmt.Fprintln(out, renderStatusLine("Identity", statusInfo, account.Identity, colorize))
	if strings.TrimSpace(account.Email) != "" {
		fmt.Fprintln(out, renderStatusLine("Email", statusInfo, account.Email, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Credits", statusInfo, fmt.Sprintf("%d", account.Credits), colorize))
	subscription := "inactive"
	subscriptionKind := statusInfo
	if account.SubscriptionActive {
		subscription = "active"
		subscriptionKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Subscription", subscriptionKind, subscription, colorize))
	if account.NextRewardAt != nil {
		fmt.Fprintln(out, renderStatusLine("Next reward", statusInfo, account.NextRewardAt.Local().Format("2006-01-02 15:04"), colorize))
	}
}

func printGenerationLines(out io.Writer, status *ipc.StatusResponse, colorize bool) {
	state := strings.TrimSpace(status.JobState)
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(out, renderStatusLine("State", statusInfo, state, colorize))
	if status.Job != nil {
		fmt.Fprintln(out, renderStatusLine("Job", statusInfo, status.Job.JobID, colorize))
		fmt.Fprintln(out, renderStatusLine("Prompt", statusInfo, truncatePrompt(status.Job.Prompt, 60), colorize))
		fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, fmt.Sprintf("%ds %s", status.Job.DurationSeconds, status.Job.AspectRatio), colorize))
		fmt.Fprintln(out, renderStatusLine("Reserved", statusInfo, fmt.Sprintf("%d credits", status.Job.ReservedCredits), colorize))
		fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, (time.Duration(status.Job.ElapsedSeconds)*time.Second).String(), colorize))
		return
	}
	if status.LastResult != nil {
		if status.LastResult.ErrorMessage != "" {
			fmt.Fprintln(out, renderStatusLine("Last result", statusWarn, status.LastResult.ErrorMessage, colorize))
		} else if status.LastResult.VideoURL != "" {
			fmt.Fprintln(out, renderStatusLine("Last result", statusOK, status.LastResult.VideoURL, colorize))
		}
	}
}

func truncatePrompt(prompt string, limit int) string {
	prompt = strings.TrimSpace(prompt)
	if limit <= 3 || len(prompt) <= limit {
		return prompt
	}
	return prompt[:limit-3] + "..."
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
