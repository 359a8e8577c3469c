package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"k8swatchdog/internal/app"
	"k8swatchdog/internal/config"
	"k8swatchdog/internal/snapshot"
)

const (
	defaultConfigPath = "./config.yaml"
	stopTimeout       = 30 * time.Second
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "watchdog",
		Short:         "Watch a Kubernetes cluster and report problem changes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatchdog(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to config (json or yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the watchdog (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWatchdog(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the config, then exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runValidate(cmd, cfgPath)
			},
		},
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			if short, _ := cmd.Flags().GetBool("short"); short {
				fmt.Fprintln(out, version)
				return
			}
			fmt.Fprintf(out, "watchdog %s\n  commit: %s\n  built:  %s\n", version, commit, buildTime)
		},
	}
	cmd.Flags().Bool("short", false, "print only the version number")
	return cmd
}

func runWatchdog(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath, app.Options{})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	stopErr := a.Stop(stopCtx, reason)
	return errors.Join(a.Err(), stopErr)
}

func runValidate(cmd *cobra.Command, cfgPath string) error {
	m := config.NewManager(cfgPath)
	cfg, err := m.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", cfgPath, err)
	}

	var cats []string
	for _, c := range snapshot.Order {
		if cfg.Category(string(c)).IsEnabled() {
			cats = append(cats, string(c))
		}
	}
	schedule := cfg.Poll.Schedule
	if schedule == "" {
		schedule = "every " + cfg.CycleInterval().String()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config ok: %s\n", cfgPath)
	fmt.Fprintf(out, "  schedule:   %s\n", schedule)
	fmt.Fprintf(out, "  categories: %s\n", strings.Join(cats, ", "))
	fmt.Fprintf(out, "  telegram:   %t\n", cfg.Telegram.Enabled)
	fmt.Fprintf(out, "  email:      %t\n", cfg.Email.Enabled)
	fmt.Fprintf(out, "  heartbeat:  %s\n", cfg.Heartbeat())
	return nil
}
