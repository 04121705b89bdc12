package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hllstatus/internal/config"
	"hllstatus/internal/crcon"
	"hllstatus/internal/rotation"
	"hllstatus/internal/section"
	logx "hllstatus/pkg/logx"
)

// ZeroWidth is the value of an "empty" embed field. Discord rejects
// blank field values.
const ZeroWidth = "​"

// Renderer builds every section of one server from its display config.
type Renderer struct {
	q       crcon.Queries
	display config.DisplayConfig
	log     logx.Logger
	now     func() time.Time
}

type Option func(*Renderer)

// WithClock replaces the clock used for footers and refresh timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

func New(q crcon.Queries, display config.DisplayConfig, log logx.Logger, opts ...Option) *Renderer {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Renderer{q: q, display: display, log: log, now: time.Now}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// Header renders the server name, connect links and VIP counters.
func (r *Renderer) Header(ctx context.Context) (section.Content, error) {
	cfg := r.display.Header

	name, err := r.q.Status(ctx)
	if err != nil {
		return section.Content{}, err
	}

	e := &section.Embed{Title: name.Name}
	if cfg.ServerName == config.ServerNameShort {
		e.Title = name.ShortName
	}
	if cfg.QuickConnectURL != "" {
		e.AddField("Quick Connect", cfg.QuickConnectURL, false)
	}
	if cfg.BattlemetricsURL != "" {
		e.AddField("BattleMetrics Page", cfg.BattlemetricsURL, false)
	}

	for _, opt := range cfg.Embeds {
		var n int
		switch opt.Value {
		case config.EmbedReservedVIPSlots:
			n, err = r.q.VIPSlots(ctx)
		case config.EmbedCurrentVIPs:
			n, err = r.q.VIPCount(ctx)
		default:
			return section.Content{}, fmt.Errorf("header: unknown embed %q", opt.Value)
		}
		if err != nil {
			return section.Content{}, err
		}
		e.AddField(opt.Name, strconv.Itoa(n), opt.Inline)
	}

	r.footer(e, cfg.DisplayLastRefreshed, cfg.LastRefreshText)
	return section.Content{Embed: e}, nil
}

// Gamestate renders the live score, players, time and maps.
func (r *Renderer) Gamestate(ctx context.Context) (section.Content, error) {
	cfg := r.display.Gamestate

	gs, err := r.q.Gamestate(ctx)
	if err != nil {
		return section.Content{}, err
	}

	e := &section.Embed{}
	if cfg.Image {
		e.ImageURL = r.q.PictureURL(gs.CurrentMap)
	}

	for _, opt := range cfg.Embeds {
		var value string
		switch opt.Value {
		case config.EmbedSlots:
			slots, err := r.q.Slots(ctx)
			if err != nil {
				return section.Content{}, err
			}
			value = slots.String()
		case config.EmbedEmpty:
			value = ZeroWidth
		case config.EmbedScore:
			value = Format(scoreFormat(cfg, gs.CurrentMap), gs.AlliedScore, gs.AxisScore)
		default:
			v, ok := gs.Field(opt.Value)
			if !ok {
				return section.Content{}, fmt.Errorf("gamestate: unknown embed %q", opt.Value)
			}
			value = v
		}
		e.AddField(opt.Name, value, opt.Inline)
	}

	r.footer(e, cfg.DisplayLastRefreshed, cfg.LastRefreshText)
	return section.Content{Embed: e}, nil
}

// scoreFormat picks the faction specific score format when one is set.
func scoreFormat(cfg config.GamestateConfig, m crcon.Map) string {
	switch m.Allies() {
	case crcon.FactionUS:
		if cfg.ScoreFormatGerUS != "" {
			return cfg.ScoreFormatGerUS
		}
	case crcon.FactionSoviet:
		if cfg.ScoreFormatGerRus != "" {
			return cfg.ScoreFormatGerRus
		}
	}
	return cfg.ScoreFormat
}

// RotationState is the rotation together with the gamestate it was matched
// against.
type RotationState struct {
	Rotation  []crcon.Map
	Gamestate crcon.Gamestate
	Positions rotation.Positions
}

// Rotation fetches the rotation and the gamestate and infers where the
// server currently is in the rotation.
func (r *Renderer) Rotation(ctx context.Context) (RotationState, error) {
	rot, err := r.q.Rotation(ctx)
	if err != nil {
		return RotationState{}, err
	}
	gs, err := r.q.Gamestate(ctx)
	if err != nil {
		return RotationState{}, err
	}
	pos := rotation.Infer(rot, gs.CurrentMap, gs.NextMap)
	r.log.Debug("rotation positions inferred",
		logx.String("current_map", gs.CurrentMap.Raw()),
		logx.String("next_map", gs.NextMap.Raw()),
		logx.Ints("current", pos.Current),
		logx.Ints("next", pos.Next),
	)
	return RotationState{Rotation: rot, Gamestate: gs, Positions: pos}, nil
}

// RotationColor renders the rotation as colored code blocks. Every inferred
// current and next position gets the same styling.
func (r *Renderer) RotationColor(ctx context.Context) (section.Content, error) {
	cfg := r.display.MapRotation.Color

	st, err := r.Rotation(ctx)
	if err != nil {
		return section.Content{}, err
	}

	current := config.ColorCodeBlocks[cfg.CurrentMapColor]
	next := config.ColorCodeBlocks[cfg.NextMapColor]
	other := config.ColorCodeBlocks[cfg.OtherMapColor]

	var lines []string
	if cfg.DisplayTitle {
		lines = append(lines, cfg.Title)
	}
	for i, m := range st.Rotation {
		style := other
		switch {
		case st.Positions.IsCurrent(i):
			style = current
		case st.Positions.IsNext(i):
			style = next
		}
		lines = append(lines, codeBlock(style, m.Name()))
	}
	if cfg.DisplayLegend && len(cfg.Legend) == 3 {
		lines = append(lines,
			cfg.LegendTitle,
			codeBlock(current, cfg.Legend[0]),
			codeBlock(next, cfg.Legend[1]),
			codeBlock(other, cfg.Legend[2]),
		)
	}
	if cfg.DisplayLastRefreshed {
		lines = append(lines, Format(cfg.LastRefreshText, r.now().Unix()))
	}

	return section.Content{Text: strings.Join(lines, "\n")}, nil
}

func codeBlock(style, text string) string {
	return "```" + style + "\n" + text + "\n```"
}

// RotationEmbed renders the rotation as one embed field with a line per map.
// Templates receive the map name as {0} and its 1-based position as {1}.
func (r *Renderer) RotationEmbed(ctx context.Context) (section.Content, error) {
	cfg := r.display.MapRotation.Embed

	st, err := r.Rotation(ctx)
	if err != nil {
		return section.Content{}, err
	}

	lines := make([]string, 0, len(st.Rotation)+1)
	for i, m := range st.Rotation {
		tmpl := cfg.OtherMap
		switch {
		case st.Positions.IsCurrent(i):
			tmpl = cfg.CurrentMap
		case st.Positions.IsNext(i):
			tmpl = cfg.NextMap
		}
		lines = append(lines, Format(tmpl, m.Name(), i+1))
	}
	if cfg.DisplayLegend {
		lines = append(lines, cfg.Legend)
	}

	e := &section.Embed{}
	title := cfg.Title
	if !cfg.DisplayTitle || title == "" {
		title = ZeroWidth
	}
	value := strings.Join(lines, "\n")
	if value == "" {
		value = ZeroWidth
	}
	e.AddField(title, value, false)

	r.footer(e, cfg.DisplayLastRefreshed, cfg.LastRefreshText)
	return section.Content{Embed: e}, nil
}

func (r *Renderer) footer(e *section.Embed, enabled bool, text string) {
	if !enabled {
		return
	}
	e.Footer = text
	e.Timestamp = r.now()
}
