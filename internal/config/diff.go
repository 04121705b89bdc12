package config

import (
	"reflect"

	logx "hllstatus/pkg/logx"
)

// SummarizeChange returns the list of changed top level blocks between two
// versions of a server file and safe attrs for logging (never credentials or
// tokens).
func SummarizeChange(oldSrv, newSrv *Server) ([]string, []logx.Field) {
	if oldSrv == nil {
		oldSrv = &Server{}
	}
	if newSrv == nil {
		newSrv = &Server{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 8)

	if oldSrv.API != newSrv.API {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.String("api.base_server_url", newSrv.API.BaseServerURL),
			logx.Bool("api.credentials_changed", oldSrv.API.Username != newSrv.API.Username || oldSrv.API.Password != newSrv.API.Password),
		)
	}
	if oldSrv.Discord != newSrv.Discord {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Int("discord.time_between_refreshes", newSrv.Discord.TimeBetweenRefreshes),
			logx.Bool("discord.webhook_changed", oldSrv.Discord.WebhookURL != newSrv.Discord.WebhookURL),
		)
	}
	if !reflect.DeepEqual(oldSrv.Telegram, newSrv.Telegram) {
		changed = append(changed, "telegram")
		attrs = append(attrs, logx.Bool("telegram.enabled", newSrv.Telegram != nil))
	}
	if oldSrv.Output != newSrv.Output {
		changed = append(changed, "output")
	}

	for _, sec := range []struct {
		name     string
		old, new any
		enabled  bool
	}{
		{"display.header", oldSrv.Display.Header, newSrv.Display.Header, newSrv.Display.Header.Enabled},
		{"display.gamestate", oldSrv.Display.Gamestate, newSrv.Display.Gamestate, newSrv.Display.Gamestate.Enabled},
		{"display.map_rotation.color", oldSrv.Display.MapRotation.Color, newSrv.Display.MapRotation.Color, newSrv.Display.MapRotation.Color.Enabled},
		{"display.map_rotation.embed", oldSrv.Display.MapRotation.Embed, newSrv.Display.MapRotation.Embed, newSrv.Display.MapRotation.Embed.Enabled},
	} {
		if !reflect.DeepEqual(sec.old, sec.new) {
			changed = append(changed, sec.name)
			attrs = append(attrs, logx.Bool(sec.name+".enabled", sec.enabled))
		}
	}

	return changed, attrs
}
