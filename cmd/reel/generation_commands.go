package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/generation"
	"reel/internal/ipc"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var durationSeconds int
	var aspect string
	var imagePath string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "create <prompt>",
		Short: "Submit a video generation job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if _, err := generation.ParseDuration(durationSeconds); err != nil {
				return err
			}
			if _, err := generation.ParseAspectRatio(aspect); err != nil {
				return err
			}

			var imageBase64 string
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read reference image: %w", err)
				}
				imageBase64 = base64.StdEncoding.EncodeToString(data)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					Prompt:          prompt,
					AspectRatio:     aspect,
					DurationSeconds: durationSeconds,
					ImageBase64:     imageBase64,
				})
				if err != nil {
					return rpcUserError(err)
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Job != nil {
					fmt.Fprintf(out, "Job %s submitted (%d credits reserved)\n", resp.JobID, resp.Job.ReservedCredits)
				} else {
					fmt.Fprintf(out, "Job %s submitted\n", resp.JobID)
				}
				fmt.Fprintln(out, "Track progress with `reel show`")
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&durationSeconds, "duration", "d", 10, "Video length in seconds (10 or 15)")
	cmd.Flags().StringVarP(&aspect, "aspect", "a", string(generation.AspectLandscape), "Aspect ratio (landscape or portrait)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Optional reference image file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobStatus()
				if err != nil {
					return rpcUserError(err)
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "State: %s\n", resp.State)
				if resp.Job != nil {
					fmt.Fprintf(out, "Job: %s\n", resp.Job.JobID)
					fmt.Fprintf(out, "Prompt: %s\n", resp.Job.Prompt)
					fmt.Fprintf(out, "Duration: %ds (%s)\n", resp.Job.DurationSeconds, resp.Job.AspectRatio)
					fmt.Fprintf(out, "Reserved credits: %d\n", resp.Job.ReservedCredits)
					fmt.Fprintf(out, "Elapsed: %s\n", (time.Duration(resp.Job.ElapsedSeconds) * time.Second).String())
					return nil
				}

				fmt.Fprintln(out, "No active job")
				if resp.LastResult != nil {
					switch {
					case resp.LastResult.ErrorMessage != "":
						fmt.Fprintf(out, "Last result: failed (%s)\n", resp.LastResult.ErrorMessage)
					case resp.LastResult.VideoURL != "":
						fmt.Fprintf(out, "Last result: %s\n", resp.LastResult.VideoURL)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History()
				if err != nil {
					return rpcUserError(err)
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				if len(resp.Videos) == 0 {
					fmt.Fprintln(out, "No videos generated yet")
					return nil
				}

				rows := make([][]string, 0, len(resp.Videos))
				for _, video := range resp.Videos {
					rows = append(rows, []string{
						video.CreatedAt.Local().Format("2006-01-02 15:04"),
						truncatePrompt(video.Prompt, 48),
						fmt.Sprintf("%ds", video.DurationSeconds),
						video.AspectRatio,
						video.VideoURL,
					})
				}
				table := renderTable(
					[]string{"Created", "Prompt", "Length", "Aspect", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
