package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hllstatus/internal/app"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "hllstatus",
		Short:         "Publish Hell Let Loose server status to Discord or Telegram",
		Long:          "hllstatus polls each configured server's CRCON API and keeps a set of status messages (header, gamestate, map rotation) up to date.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := app.BindFlags(root.PersistentFlags(), v); err != nil {
		root.RunE = func(*cobra.Command, []string) error { return err }
		return root
	}

	run := newRunCmd(v)
	root.RunE = run.RunE
	root.AddCommand(run, newCheckCmd(v), newRotationCmd(v))
	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Publish until interrupted (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.LoadSettings(v)
			if err != nil {
				return err
			}
			if err := app.EnsureDirs(s); err != nil {
				return err
			}
			return runApp(cmd.Context(), s)
		},
	}
}

func runApp(parent context.Context, s app.Settings) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	a, err := app.New(ctx, s)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}
	cancel()

	fatal := a.Err()
	if err := a.Stop(context.Background(), reason); err != nil && fatal == nil {
		return err
	}
	if fatal != nil && !errors.Is(fatal, context.Canceled) {
		return fatal
	}
	return nil
}
