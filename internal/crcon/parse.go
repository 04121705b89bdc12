package crcon

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timeRemainingRe = regexp.MustCompile(`^(\d):(\d{2}):(\d{2})$`)

var errShape = errors.New("unexpected shape")

// ServerName is the result of get_status.
type ServerName struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Gamestate is the result of get_gamestate.
type Gamestate struct {
	NumAlliedPlayers int
	NumAxisPlayers   int
	AlliedScore      int
	AxisScore        int
	RawTimeRemaining string
	TimeRemaining    time.Duration
	CurrentMap       Map
	NextMap          Map
}

// Field returns a display value for a gamestate key. It backs embed options
// that name a raw gamestate field.
func (g Gamestate) Field(key string) (string, bool) {
	switch key {
	case "num_allied_players":
		return strconv.Itoa(g.NumAlliedPlayers), true
	case "num_axis_players":
		return strconv.Itoa(g.NumAxisPlayers), true
	case "allied_score":
		return strconv.Itoa(g.AlliedScore), true
	case "axis_score":
		return strconv.Itoa(g.AxisScore), true
	case "raw_time_remaining":
		return g.RawTimeRemaining, true
	case "time_remaining":
		return formatRemaining(g.TimeRemaining), true
	case "current_map":
		return g.CurrentMap.Name(), true
	case "next_map":
		return g.NextMap.Name(), true
	default:
		return "", false
	}
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Slots is the result of get_slots ("42/100").
type Slots struct {
	PlayerCount int
	MaxPlayers  int
}

func (s Slots) String() string { return fmt.Sprintf("%d/%d", s.PlayerCount, s.MaxPlayers) }

// ParseStatus decodes the server name pair from get_status.
func ParseStatus(raw json.RawMessage) (ServerName, error) {
	var out ServerName
	if err := json.Unmarshal(raw, &out); err != nil {
		return ServerName{}, &ParseError{Endpoint: EndpointStatus, Value: clip(raw), Err: err}
	}
	return out, nil
}

// ParseGamestate decodes get_gamestate. The remaining time must be H:MM:SS
// with a single digit hour.
func ParseGamestate(raw json.RawMessage) (Gamestate, error) {
	var wire struct {
		NumAlliedPlayers int    `json:"num_allied_players"`
		NumAxisPlayers   int    `json:"num_axis_players"`
		AlliedScore      int    `json:"allied_score"`
		AxisScore        int    `json:"axis_score"`
		RawTimeRemaining string `json:"raw_time_remaining"`
		CurrentMap       string `json:"current_map"`
		NextMap          string `json:"next_map"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Gamestate{}, &ParseError{Endpoint: EndpointGamestate, Value: clip(raw), Err: err}
	}

	remaining, err := ParseTimeRemaining(wire.RawTimeRemaining)
	if err != nil {
		return Gamestate{}, &ParseError{
			Endpoint: EndpointGamestate,
			Field:    "raw_time_remaining",
			Value:    wire.RawTimeRemaining,
			Err:      err,
		}
	}

	return Gamestate{
		NumAlliedPlayers: wire.NumAlliedPlayers,
		NumAxisPlayers:   wire.NumAxisPlayers,
		AlliedScore:      wire.AlliedScore,
		AxisScore:        wire.AxisScore,
		RawTimeRemaining: wire.RawTimeRemaining,
		TimeRemaining:    remaining,
		CurrentMap:       NewMap(wire.CurrentMap),
		NextMap:          NewMap(wire.NextMap),
	}, nil
}

// ParseTimeRemaining parses "H:MM:SS".
func ParseTimeRemaining(s string) (time.Duration, error) {
	m := timeRemainingRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: want H:MM:SS", errShape)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second, nil
}

// ParseSlots decodes get_slots, a string of the form "<players>/<max>".
func ParseSlots(raw json.RawMessage) (Slots, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Slots{}, &ParseError{Endpoint: EndpointSlots, Value: clip(raw), Err: err}
	}
	left, right, ok := strings.Cut(s, "/")
	if !ok || strings.Contains(right, "/") {
		return Slots{}, &ParseError{Endpoint: EndpointSlots, Value: s, Err: fmt.Errorf("%w: want <players>/<max>", errShape)}
	}
	players, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return Slots{}, &ParseError{Endpoint: EndpointSlots, Value: s, Err: err}
	}
	maxPlayers, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return Slots{}, &ParseError{Endpoint: EndpointSlots, Value: s, Err: err}
	}
	return Slots{PlayerCount: players, MaxPlayers: maxPlayers}, nil
}

// ParseRotation decodes get_map_rotation, a list of raw map names.
func ParseRotation(raw json.RawMessage) ([]Map, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, &ParseError{Endpoint: EndpointRotation, Value: clip(raw), Err: err}
	}
	out := make([]Map, 0, len(names))
	for _, n := range names {
		out = append(out, NewMap(n))
	}
	return out, nil
}

// ParseCount decodes an integer result. The control API returns counts
// either as JSON numbers or as numeric strings.
func ParseCount(endpoint string, raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, &ParseError{Endpoint: endpoint, Value: clip(raw), Err: errShape}
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ParseError{Endpoint: endpoint, Value: s, Err: err}
	}
	return n, nil
}

func clip(raw []byte) string {
	const maxN = 200
	if len(raw) <= maxN {
		return string(raw)
	}
	return string(raw[:maxN]) + "..."
}
