package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"landing/internal/logs"
)

const logFollowWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var landingID string
	var level string
	var search string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			opts := logs.TailOptions{
				Offset: -1,
				Limit:  lines,
				Filter: logs.Filter{
					LandingID: strings.TrimSpace(landingID),
					Level:     strings.TrimSpace(level),
					Search:    strings.TrimSpace(search),
				},
			}
			out := cmd.OutOrStdout()
			for {
				result, err := logs.Tail(cmd.Context(), path, opts)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				opts.Offset = result.Offset
				opts.Follow = true
				opts.Wait = logFollowWait
				if cmd.Context().Err() != nil {
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&landingID, "landing", "", "Only show lines for this landing id")
	cmd.Flags().StringVar(&level, "level", "", "Only show lines at this level (json logs match exactly)")
	cmd.Flags().StringVar(&search, "grep", "", "Only show lines containing this text")
	return cmd
}
