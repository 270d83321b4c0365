package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"landing/internal/api"
	"landing/internal/apiclient"
	"landing/internal/session"
)

const (
	createPollInterval = time.Second
	promptPreviewWidth = 48
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var title string
	var chatID string
	var wait bool
	cmd := &cobra.Command{
		Use:   "create <prompt>",
		Short: "Start generating a landing page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(true)
			if err != nil {
				return err
			}
			resp, err := client.Create(cmd.Context(), api.CreateLandingRequest{
				Prompt: strings.Join(args, " "),
				Title:  strings.TrimSpace(title),
				ChatID: strings.TrimSpace(chatID),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Landing %s %s (channel %s)\n", resp.LandingID, resp.State, resp.ChannelID)
			if !wait {
				return nil
			}
			return waitForLanding(cmd, client, resp.LandingID)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title hint for the generated page")
	cmd.Flags().StringVar(&chatID, "chat", "", "Chat channel id that mirrors progress")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the landing completes or fails")
	return cmd
}

// waitForLanding polls the status endpoint, printing each progress change.
func waitForLanding(cmd *cobra.Command, client *apiclient.Client, landingID string) error {
	out := cmd.OutOrStdout()
	last := -1
	ticker := time.NewTicker(createPollInterval)
	defer ticker.Stop()
	for {
		status, err := client.LandingStatus(cmd.Context(), landingID)
		if err != nil {
			return err
		}
		if status.Progress != last {
			last = status.Progress
			fmt.Fprintf(out, "%3d%% %s %s\n", status.Progress, status.State, status.Message)
		}
		switch status.State {
		case string(session.StateComplete):
			fmt.Fprintf(out, "Preview: %s%s\n", client.BaseURL(), api.PreviewPath(landingID))
			return nil
		case string(session.StateFailed):
			return fmt.Errorf("landing %s failed: %s (%s)", landingID, status.Error, status.ErrorCode)
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List completed landings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(true)
			if err != nil {
				return err
			}
			landings, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.LandingListResponse{Landings: landings})
			}
			out := cmd.OutOrStdout()
			if len(landings) == 0 {
				fmt.Fprintln(out, "No landings found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Assets", "Missing", "Completed"},
				landingRows(landings),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw list payload")
	return cmd
}

func landingRows(landings []api.LandingSummary) [][]string {
	rows := make([][]string, 0, len(landings))
	for _, l := range landings {
		title := l.Title
		if title == "" {
			title = truncateText(l.Prompt, promptPreviewWidth)
		}
		rows = append(rows, []string{
			l.LandingID,
			title,
			strconv.Itoa(len(l.Assets)),
			strconv.Itoa(len(l.MissingAssets)),
			l.CompletedAt,
		})
	}
	return rows
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <landing-id>",
		Short: "Show landing details and status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(true)
			if err != nil {
				return err
			}
			status, err := client.LandingStatus(cmd.Context(), args[0])
			if err != nil {
				if apiclient.IsExpired(err) {
					return fmt.Errorf("landing %s has expired", args[0])
				}
				return err
			}
			var summary *api.LandingSummary
			if status.State == string(session.StateComplete) {
				summary, err = client.Show(cmd.Context(), args[0])
				if err != nil && !apiclient.IsNotFound(err) {
					return err
				}
			}
			if asJSON {
				return writeJSON(cmd, struct {
					Status  *api.LandingStatus  `json:"status"`
					Landing *api.LandingSummary `json:"landing,omitempty"`
				}{status, summary})
			}
			renderLanding(cmd.OutOrStdout(), client.BaseURL(), status, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw payloads")
	return cmd
}

func renderLanding(out io.Writer, base string, status *api.LandingStatus, summary *api.LandingSummary) {
	fmt.Fprintf(out, "Landing:   %s\n", status.LandingID)
	fmt.Fprintf(out, "State:     %s (%d%%, from %s)\n", status.State, status.Progress, status.Source)
	if status.Message != "" {
		fmt.Fprintf(out, "Message:   %s\n", status.Message)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "Error:     %s (%s)\n", status.Error, status.ErrorCode)
	}
	if summary == nil {
		return
	}
	if summary.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", summary.Title)
	}
	if summary.Prompt != "" {
		fmt.Fprintf(out, "Prompt:    %s\n", summary.Prompt)
	}
	fmt.Fprintf(out, "Assets:    %s\n", joinOrNone(summary.Assets))
	fmt.Fprintf(out, "Sounds:    %s\n", joinOrNone(summary.Sounds))
	if len(summary.MissingAssets) > 0 {
		fmt.Fprintf(out, "Missing:   %s\n", strings.Join(summary.MissingAssets, ", "))
	}
	if summary.DurationMs > 0 {
		fmt.Fprintf(out, "Duration:  %s\n", (time.Duration(summary.DurationMs) * time.Millisecond).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Preview:   %s%s\n", base, summary.PreviewURL)
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <landing-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete landings and their bundles",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var missing []string
			for _, id := range args {
				deleted, err := client.Delete(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				if !deleted {
					missing = append(missing, id)
					fmt.Fprintf(out, "Landing %s not found\n", id)
					continue
				}
				fmt.Fprintf(out, "Deleted landing %s\n", id)
			}
			if len(missing) == len(args) {
				return errors.New("no landings deleted")
			}
			return nil
		},
	}
}

func newZipCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "zip <landing-id>",
		Short: "Download a landing as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(true)
			if err != nil {
				return err
			}
			id := args[0]
			target := strings.TrimSpace(output)
			if target == "" {
				target = id + ".zip"
			}
			if target == "-" {
				_, err := client.Zip(cmd.Context(), id, cmd.OutOrStdout())
				return err
			}
			return downloadZip(cmd, client, id, target)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to <landing-id>.zip, - for stdout)")
	return cmd
}

// downloadZip writes to a temp file beside target and renames on success so
// a failed download never leaves a truncated archive.
func downloadZip(cmd *cobra.Command, client *apiclient.Client, id, target string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".landing-*.zip")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	n, copyErr := client.Zip(cmd.Context(), id, tmp)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return copyErr
		}
		return fmt.Errorf("close archive: %w", closeErr)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move archive into place: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, n)
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func truncateText(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
