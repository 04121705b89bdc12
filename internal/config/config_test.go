package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hllstatus/internal/section"
	logx "hllstatus/pkg/logx"
)

func TestParseExampleTOML(t *testing.T) {
	t.Parallel()
	srv, err := Parse(filepath.Join("testdata", "alpha.toml"))
	require.NoError(t, err)

	assert.Equal(t, "alpha", srv.ID)
	assert.Equal(t, "alpha", srv.DocumentID())
	assert.Equal(t, 30*time.Second, srv.Refresh())
	assert.Equal(t, ServerNameFull, srv.Display.Header.ServerName)
	require.Len(t, srv.Display.Gamestate.Embeds, 6)
	assert.Equal(t, EmbedSlots, srv.Display.Gamestate.Embeds[0].Value)
	assert.Equal(t, []string{"Current Map", "Next Map", "Other Maps"}, srv.Display.MapRotation.Color.Legend)

	sch, err := srv.ScheduleFor(srv.Display.Gamestate.Schedule)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, sch.Every)

	sch, err = srv.ScheduleFor(srv.Display.Header.Schedule)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, sch.Every)

	sch, err = srv.ScheduleFor(srv.Display.MapRotation.Embed.Schedule)
	require.NoError(t, err)
	assert.Equal(t, section.KindCron, sch.Kind)
}

func TestDecodeFormatsAgree(t *testing.T) {
	t.Parallel()
	tomlSrv, err := Parse(filepath.Join("testdata", "alpha.toml"))
	require.NoError(t, err)

	yamlDoc := `
discord:
  webhook_url: https://discord.com/api/webhooks/1/t
  time_between_refreshes: 5
api:
  base_server_url: http://127.0.0.1:8010
  username: u
  password: p
display:
  header: {enabled: true, server_name: short_name, display_last_refreshed: false, last_refresh_text: "", embeds: []}
  gamestate: {enabled: false, image: false, score_format: "", display_last_refreshed: false, last_refresh_text: "", embeds: []}
`
	srv, err := Decode("bravo.yaml", []byte(yamlDoc))
	require.NoError(t, err)
	require.NoError(t, srv.Validate())
	assert.Equal(t, "bravo", srv.ID)
	assert.Equal(t, ServerNameShort, srv.Display.Header.ServerName)

	jsonDoc := `{"discord":{"webhook_url":"https://discord.com/api/webhooks/1/t","time_between_refreshes":5},
		"api":{"base_server_url":"http://x","username":"u","password":"p"},
		"display":{"header":{"enabled":false,"server_name":"name","display_last_refreshed":false,"last_refresh_text":"","embeds":null}}}`
	srv, err = Decode("charlie.json", []byte(jsonDoc))
	require.NoError(t, err)
	require.NoError(t, srv.Validate())
	assert.NotEqual(t, tomlSrv.ID, srv.ID)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Decode("x.toml", []byte("[api]\nbase_server_url = \"http://x\"\nusernme = \"typo\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usernme")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()
	srv := &Server{
		Discord: DiscordConfig{WebhookURL: "https://example.com/not-a-hook", TimeBetweenRefreshes: 0},
		API:     APIConfig{BaseServerURL: "ftp://x", Username: "u", Password: "p", RetryDelay: "soon"},
		Display: DisplayConfig{
			Header:    HeaderConfig{ServerName: "nickname", Embeds: []EmbedOption{{Value: "players"}}},
			Gamestate: GamestateConfig{Embeds: []EmbedOption{{Value: "score"}}, Schedule: "whenever"},
			MapRotation: MapRotationConfig{Color: RotationColorConfig{
				Enabled: true, CurrentMapColor: "purple", NextMapColor: "green", OtherMapColor: "none",
				DisplayLegend: true, Legend: []string{"only one"},
			}},
		},
	}
	err := srv.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"api.base_server_url", "api.retry_delay", "time_between_refreshes", "webhook_url",
		"server_name", "display.header.embeds", "score_format", "current_map_color",
		"legend needs 3", "display.gamestate.schedule",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestTelegramReplacesWebhookRequirement(t *testing.T) {
	t.Parallel()
	srv := &Server{
		Discord:  DiscordConfig{TimeBetweenRefreshes: 10},
		Telegram: &TelegramConfig{Token: "123:abc", ChatID: -100123},
		API:      APIConfig{BaseServerURL: "https://rcon.example.com", Username: "u", Password: "p"},
		Display:  DisplayConfig{Header: HeaderConfig{ServerName: ServerNameFull}},
	}
	require.NoError(t, srv.Validate())
}

func TestParseWebhookURL(t *testing.T) {
	t.Parallel()
	id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/123/tok-en")
	require.NoError(t, err)
	assert.Equal(t, "123", id)
	assert.Equal(t, "tok-en", token)

	_, _, err = ParseWebhookURL("https://discord.com/api/channels/123")
	assert.Error(t, err)
}

func TestLoadDirKeepsValidServers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good, err := os.ReadFile(filepath.Join("testdata", "alpha.toml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.toml"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("[api\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	servers, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.toml")
	require.Len(t, servers, 1)
	assert.Equal(t, "alpha", servers[0].ID)

	_, err = LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrNoServers)
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	a, err := Parse(filepath.Join("testdata", "alpha.toml"))
	require.NoError(t, err)
	b := *a
	b.API.Password = "rotated"
	b.Display.Gamestate.Image = false

	changed, attrs := SummarizeChange(a, &b)
	assert.Equal(t, []string{"api", "display.gamestate"}, changed)

	var buf strings.Builder
	logx.NewJSON(&buf, "info").Info("reload", attrs...)
	assert.NotContains(t, buf.String(), "rotated")
	assert.Contains(t, buf.String(), `"api.credentials_changed":true`)
}

func TestWatcherReportsUpdatesAndRemovals(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good, err := os.ReadFile(filepath.Join("testdata", "alpha.toml"))
	require.NoError(t, err)
	path := filepath.Join(dir, "alpha.toml")
	require.NoError(t, os.WriteFile(path, good, 0o644))

	initial, err := LoadDir(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWatcher(dir, initial, logx.Nop())
	w.debounce = 20 * time.Millisecond
	go func() { _ = w.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Unchanged rewrite and an invalid edit are both ignored.
	require.NoError(t, os.WriteFile(path, good, 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[api\n"), 0o644))
	time.Sleep(100 * time.Millisecond)

	edited := strings.Replace(string(good), "time_between_refreshes = 30", "time_between_refreshes = 45", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	select {
	case c := <-w.Changes():
		assert.Equal(t, ChangeUpdated, c.Kind)
		assert.Equal(t, 45, c.Server.Discord.TimeBetweenRefreshes)
	case <-time.After(3 * time.Second):
		t.Fatalf("no update reported")
	}

	require.NoError(t, os.Remove(path))
	select {
	case c := <-w.Changes():
		assert.Equal(t, ChangeRemoved, c.Kind)
		assert.Equal(t, "alpha", c.ID)
	case <-time.After(3 * time.Second):
		t.Fatalf("no removal reported")
	}
}

func TestWatcherPicksUpFilesWrittenBeforeWatching(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good, err := os.ReadFile(filepath.Join("testdata", "alpha.toml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.toml"), good, 0o644))
	initial, err := LoadDir(dir)
	require.NoError(t, err)

	// bravo appears between loading and watching.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bravo.toml"), good, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWatcher(dir, initial, logx.Nop())
	w.debounce = 10 * time.Millisecond
	go func() { _ = w.Watch(ctx) }()

	select {
	case c := <-w.Changes():
		assert.Equal(t, "bravo", c.ID)
		assert.Equal(t, ChangeUpdated, c.Kind)
	case <-time.After(3 * time.Second):
		t.Fatalf("file written before watching was not reported")
	}
	select {
	case c := <-w.Changes():
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}
