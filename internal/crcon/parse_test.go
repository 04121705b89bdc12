package crcon

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseGamestate(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{
		"num_allied_players": 48, "num_axis_players": 47,
		"allied_score": 3, "axis_score": 2,
		"raw_time_remaining": "1:02:03",
		"current_map": "foy_warfare", "next_map": "Untitled_42"
	}`)

	gs, err := ParseGamestate(raw)
	if err != nil {
		t.Fatalf("ParseGamestate: %v", err)
	}
	if want := time.Hour + 2*time.Minute + 3*time.Second; gs.TimeRemaining != want {
		t.Fatalf("TimeRemaining=%v want %v", gs.TimeRemaining, want)
	}
	if gs.CurrentMap.Name() != "Foy Warfare" {
		t.Fatalf("current map name %q", gs.CurrentMap.Name())
	}
	if !gs.NextMap.IsBetweenMatches() {
		t.Fatalf("next map should be between matches, got %q", gs.NextMap.Raw())
	}
	if v, ok := gs.Field("time_remaining"); !ok || v != "1:02:03" {
		t.Fatalf("Field(time_remaining)=%q,%v", v, ok)
	}
}

func TestParseTimeRemainingRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "12:00:00", "1:2:03", "1:02", "a:bc:de", "1:02:03x"} {
		if _, err := ParseTimeRemaining(in); err == nil {
			t.Fatalf("ParseTimeRemaining(%q) should fail", in)
		}
	}
}

func TestParseSlots(t *testing.T) {
	t.Parallel()
	s, err := ParseSlots(json.RawMessage(`"42/100"`))
	if err != nil {
		t.Fatalf("ParseSlots: %v", err)
	}
	if s.PlayerCount != 42 || s.MaxPlayers != 100 || s.String() != "42/100" {
		t.Fatalf("unexpected slots %+v", s)
	}

	for _, bad := range []string{`"42"`, `"42/100/3"`, `"x/100"`, `42`} {
		_, err := ParseSlots(json.RawMessage(bad))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("ParseSlots(%s) err=%v, want *ParseError", bad, err)
		}
	}
}

func TestParseCountAcceptsNumberOrString(t *testing.T) {
	t.Parallel()
	for _, in := range []string{`7`, `"7"`, `" 7 "`} {
		n, err := ParseCount(EndpointVIPCount, json.RawMessage(in))
		if err != nil || n != 7 {
			t.Fatalf("ParseCount(%s)=%d,%v", in, n, err)
		}
	}
	if _, err := ParseCount(EndpointVIPCount, json.RawMessage(`"seven"`)); err == nil {
		t.Fatalf("expected error for non numeric count")
	}
}

func TestParseRotationNormalizes(t *testing.T) {
	t.Parallel()
	maps, err := ParseRotation(json.RawMessage(`["foy_warfare_RESTART","kursk_offensive_rus","newmap_warfare"]`))
	if err != nil {
		t.Fatalf("ParseRotation: %v", err)
	}
	got := []string{maps[0].Raw(), maps[1].Raw(), maps[2].Raw()}
	want := []string{"foy_warfare", "kursk_offensive_rus", "newmap_warfare"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation[%d]=%q want %q", i, got[i], want[i])
		}
	}
	if maps[2].Known() || maps[2].Name() != "newmap_warfare" {
		t.Fatalf("unknown map should display raw name, got %q", maps[2].Name())
	}
}

func TestMapFactionsAndPictures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		allies  Faction
		picture string
	}{
		{"carentan_warfare", FactionUS, "carentan.webp"},
		{"stalingrad_offensive_ger", FactionSoviet, "stalingrad.webp"},
		{"driel_offensive_CW", FactionBritish, "driel.webp"},
		{"Untitled_3", FactionUnknown, ""},
		{"mystery_warfare", FactionUnknown, ""},
	}
	for _, tc := range cases {
		m := NewMap(tc.raw)
		if m.Allies() != tc.allies || m.Picture() != tc.picture {
			t.Fatalf("%s: allies=%v picture=%q", tc.raw, m.Allies(), m.Picture())
		}
	}
}

func TestPictureURL(t *testing.T) {
	t.Parallel()
	q := NewQueries(nil, NewSession("alpha", "https://rcon.example.com/", "u", "p"))
	if got := q.PictureURL(NewMap("foy_warfare")); got != "https://rcon.example.com/static/maps/foy.webp" {
		t.Fatalf("PictureURL=%q", got)
	}
	if got := q.PictureURL(NewMap("Untitled_1")); got != "" {
		t.Fatalf("between matches should have no picture, got %q", got)
	}
}
