package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"landing/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDev bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the landing daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, opts, err := ctx.controller(startDev)
			if err != nil {
				return err
			}
			result, err := ctl.EnsureStarted(cmd.Context(), opts, startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDev, "dev", false, "Enable development logging")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the landing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, _, err := ctx.controller(false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := ctl.Stop(cmd.Context(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}

	var restartDev bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the landing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, opts, err := ctx.controller(restartDev)
			if err != nil {
				return err
			}
			result, err := ctl.Restart(cmd.Context(), opts, stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.WasRunning {
				fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.Stop.PID)
			}
			fmt.Fprintf(out, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDev, "dev", false, "Enable development logging")

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

// controller pairs a process controller with launch options that replay this
// invocation's --config to the background daemon.
func (c *commandContext) controller(development bool) (*daemonctl.Controller, daemonctl.LaunchOptions, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, daemonctl.LaunchOptions{}, err
	}
	client, err := c.client(false)
	if err != nil {
		return nil, daemonctl.LaunchOptions{}, err
	}
	exe, err := daemonExecutable()
	if err != nil {
		return nil, daemonctl.LaunchOptions{}, err
	}
	opts := daemonctl.LaunchOptions{Executable: exe, Development: development}
	if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
		path, err := filepath.Abs(strings.TrimSpace(*c.configFlag))
		if err != nil {
			return nil, daemonctl.LaunchOptions{}, fmt.Errorf("resolve config path: %w", err)
		}
		opts.ConfigPath = path
	}
	return daemonctl.New(cfg, client), opts, nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
