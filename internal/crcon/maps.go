package crcon

import (
	"regexp"
	"sort"
	"strings"
)

// BetweenMatches is the sentinel raw name for the transient map a server
// reports while it loads the next match ("Untitled_NN").
const BetweenMatches = "between_matches"

const restartSuffix = "_RESTART"

var betweenMatchesRe = regexp.MustCompile(`^Untitled_\d+`)

// Faction fighting the Axis on a map.
type Faction int

const (
	FactionUnknown Faction = iota
	FactionUS
	FactionSoviet
	FactionBritish
)

func (f Faction) String() string {
	switch f {
	case FactionUS:
		return "us"
	case FactionSoviet:
		return "rus"
	case FactionBritish:
		return "gb"
	default:
		return "unknown"
	}
}

type baseMap struct {
	pretty  string
	picture string
	allies  Faction
	// modes lists the raw name suffixes the server can report for this map.
	modes []string
}

var warfareOffensive = []string{"warfare", "warfare_night", "offensive_us", "offensive_ger", "skirmish_day", "skirmish_night"}

var baseMaps = map[string]baseMap{
	"foy":             {"Foy", "foy.webp", FactionUS, warfareOffensive},
	"stmariedumont":   {"St. Marie Du Mont", "smdm.webp", FactionUS, warfareOffensive},
	"hurtgenforest":   {"Hurtgen Forest", "hurtgen.webp", FactionUS, warfareOffensive},
	"utahbeach":       {"Utah Beach", "utah.webp", FactionUS, warfareOffensive},
	"omahabeach":      {"Omaha Beach", "omaha.webp", FactionUS, warfareOffensive},
	"stmereeglise":    {"Sainte-Mère-Église", "sme.webp", FactionUS, warfareOffensive},
	"purpleheartlane": {"Purple Heart Lane", "phl.webp", FactionUS, warfareOffensive},
	"hill400":         {"Hill 400", "hill400.webp", FactionUS, warfareOffensive},
	"carentan":        {"Carentan", "carentan.webp", FactionUS, warfareOffensive},
	"remagen":         {"Remagen", "remagen.webp", FactionUS, warfareOffensive},
	"mortain":         {"Mortain", "mortain.webp", FactionUS, warfareOffensive},
	"elsenbornridge":  {"Elsenborn Ridge", "elsenborn.webp", FactionUS, warfareOffensive},
	"kursk":           {"Kursk", "kursk.webp", FactionSoviet, []string{"warfare", "warfare_night", "offensive_rus", "offensive_ger", "skirmish_day"}},
	"stalingrad":      {"Stalingrad", "stalingrad.webp", FactionSoviet, []string{"warfare", "warfare_night", "offensive_rus", "offensive_ger", "skirmish_day"}},
	"kharkov":         {"Kharkov", "kharkov.webp", FactionSoviet, []string{"warfare", "warfare_night", "offensive_rus", "offensive_ger", "skirmish_day"}},
	"smolensk":        {"Smolensk", "smolensk.webp", FactionSoviet, []string{"warfare", "warfare_night", "offensive_rus", "offensive_ger", "skirmish_day"}},
	"driel":           {"Driel", "driel.webp", FactionBritish, []string{"warfare", "warfare_night", "offensive_CW", "offensive_ger", "skirmish_day"}},
	"elalamein":       {"El Alamein", "elalamein.webp", FactionBritish, []string{"warfare", "warfare_night", "offensive_CW", "offensive_ger", "skirmish_day"}},
	"tobruk":          {"Tobruk", "tobruk.webp", FactionBritish, []string{"warfare", "warfare_night", "offensive_CW", "offensive_ger", "skirmish_day"}},
}

var modeLabels = map[string]string{
	"warfare":        "Warfare",
	"warfare_night":  "Warfare (Night)",
	"offensive_us":   "Offensive (US)",
	"offensive_rus":  "Offensive (RUS)",
	"offensive_CW":   "Offensive (CW)",
	"offensive_ger":  "Offensive (GER)",
	"skirmish_day":   "Skirmish",
	"skirmish_night": "Skirmish (Night)",
}

// knownMaps maps every raw name the server may report to its long name.
var knownMaps = func() map[string]string {
	out := make(map[string]string)
	for base, bm := range baseMaps {
		for _, mode := range bm.modes {
			out[base+"_"+mode] = bm.pretty + " " + modeLabels[mode]
		}
	}
	return out
}()

// Map is a normalized server map name such as "foy_offensive_ger".
type Map struct {
	raw string
}

// NewMap normalizes a raw server map name. "Untitled_NN" becomes
// BetweenMatches and a trailing "_RESTART" on a known map is dropped.
// Unknown names are kept verbatim so new maps display instead of failing.
func NewMap(raw string) Map {
	raw = strings.TrimSpace(raw)
	if betweenMatchesRe.MatchString(raw) {
		return Map{raw: BetweenMatches}
	}
	if trimmed, ok := strings.CutSuffix(raw, restartSuffix); ok {
		if _, known := knownMaps[trimmed]; known {
			raw = trimmed
		}
	}
	return Map{raw: raw}
}

// Raw returns the normalized raw name; rotation matching compares these.
func (m Map) Raw() string { return m.raw }

// IsBetweenMatches reports whether the server is loading the next match.
func (m Map) IsBetweenMatches() bool { return m.raw == BetweenMatches }

// Known reports whether the map is in the built-in table.
func (m Map) Known() bool {
	_, ok := knownMaps[m.raw]
	return ok
}

// Name is the human readable name. Unknown maps fall back to the raw name.
func (m Map) Name() string {
	if m.IsBetweenMatches() {
		return "Between Matches"
	}
	if name, ok := knownMaps[m.raw]; ok {
		return name
	}
	if m.raw == "" {
		return "Unknown Map"
	}
	return m.raw
}

func (m Map) String() string { return m.Name() }

// Base is the map name without its mode suffix ("foy").
func (m Map) Base() string {
	base, _, _ := strings.Cut(m.raw, "_")
	return base
}

// Allies reports which faction fights the Axis on this map.
func (m Map) Allies() Faction {
	if bm, ok := baseMaps[m.Base()]; ok {
		return bm.allies
	}
	return FactionUnknown
}

// Picture returns the image file name served under the control API's static
// map directory, or "" when no picture is known.
func (m Map) Picture() string {
	if m.IsBetweenMatches() {
		return ""
	}
	if bm, ok := baseMaps[m.Base()]; ok {
		return bm.picture
	}
	return ""
}

// KnownMaps returns every raw map name in the built-in table, sorted.
func KnownMaps() []string {
	out := make([]string, 0, len(knownMaps))
	for raw := range knownMaps {
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}
