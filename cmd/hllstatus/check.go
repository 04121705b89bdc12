package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hllstatus/internal/app"
	"hllstatus/internal/config"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate every server config and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.LoadSettings(v)
			if err != nil {
				return err
			}
			servers, err := config.LoadDir(s.ConfigDir)
			out := cmd.OutOrStdout()
			for _, srv := range servers {
				fmt.Fprintf(out, "ok    %s (%s)\n", srv.ID, describe(srv))
			}
			if errors.Is(err, config.ErrNoServers) {
				fmt.Fprintf(out, "no server configs in %s\n", s.ConfigDir)
				return nil
			}
			return err
		},
	}
}

func describe(srv *config.Server) string {
	var enabled []string
	d := srv.Display
	for _, sec := range []struct {
		key string
		on  bool
	}{
		{"header", d.Header.Enabled},
		{"gamestate", d.Gamestate.Enabled},
		{"rotation_color", d.MapRotation.Color.Enabled},
		{"rotation_embed", d.MapRotation.Embed.Enabled},
	} {
		if sec.on {
			enabled = append(enabled, sec.key)
		}
	}
	target := "discord"
	if srv.Telegram != nil {
		target = "telegram"
	}
	return fmt.Sprintf("%s, sections %v, refresh %s", target, enabled, srv.Refresh())
}
