package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hllstatus/internal/app"
	"hllstatus/internal/config"
	"hllstatus/internal/orchestrator"
	"hllstatus/internal/render"
	logx "hllstatus/pkg/logx"
)

func newRotationCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rotation <server>",
		Short: "Fetch one server's rotation and show where the current and next maps are",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.LoadSettings(v)
			if err != nil {
				return err
			}
			srv, err := findServer(s.ConfigDir, args[0])
			if err != nil {
				return err
			}
			log := logx.NewConsole(s.LogLevel)
			r := render.New(orchestrator.NewQueries(&http.Client{}, srv, log), srv.Display, log)
			st, err := r.Rotation(cmd.Context())
			if err != nil {
				return err
			}
			printRotation(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func findServer(dir, id string) (*config.Server, error) {
	for _, ext := range []string{".toml", ".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return config.Parse(path)
		}
	}
	return nil, fmt.Errorf("no config file for server %q in %s", id, dir)
}

func printRotation(w io.Writer, st render.RotationState) {
	gs := st.Gamestate
	fmt.Fprintf(w, "current: %s (%s)\n", gs.CurrentMap.Name(), gs.CurrentMap.Raw())
	fmt.Fprintf(w, "next:    %s (%s)\n", gs.NextMap.Name(), gs.NextMap.Raw())
	if gs.CurrentMap.IsBetweenMatches() {
		fmt.Fprintln(w, "between matches: no position marked")
	}
	for i, m := range st.Rotation {
		mark := " "
		switch {
		case st.Positions.IsCurrent(i):
			mark = "*"
		case st.Positions.IsNext(i):
			mark = ">"
		}
		fmt.Fprintf(w, "%s %2d. %s\n", mark, i+1, m.Name())
	}
	if len(st.Positions.Current) > 1 {
		fmt.Fprintf(w, "ambiguous: candidate current positions %v\n", oneBased(st.Positions.Current))
	}
}

func oneBased(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + 1
	}
	return out
}
