package render

import (
	"fmt"

	"hllstatus/internal/config"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
)

// Sections returns the enabled sections of srv in display order, each bound
// to r and to its schedule.
func Sections(srv *config.Server, r *Renderer) ([]section.Section, error) {
	d := srv.Display
	candidates := []struct {
		key      string
		enabled  bool
		schedule string
		build    section.BuilderFunc
	}{
		{store.KeyHeader, d.Header.Enabled, d.Header.Schedule, r.Header},
		{store.KeyGamestate, d.Gamestate.Enabled, d.Gamestate.Schedule, r.Gamestate},
		{store.KeyRotationColor, d.MapRotation.Color.Enabled, d.MapRotation.Color.Schedule, r.RotationColor},
		{store.KeyRotationEmbed, d.MapRotation.Embed.Enabled, d.MapRotation.Embed.Schedule, r.RotationEmbed},
	}

	out := make([]section.Section, 0, len(candidates))
	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		sch, err := srv.ScheduleFor(c.schedule)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.key, err)
		}
		out = append(out, section.Section{Key: c.key, Schedule: sch, Builder: c.build})
	}
	return out, nil
}
