package config

// Server is one server's configuration file. The server identifier is the
// file name without its extension.
type Server struct {
	ID   string `json:"-"`
	Path string `json:"-"`

	Output   OutputConfig    `json:"output"`
	Discord  DiscordConfig   `json:"discord"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	API      APIConfig       `json:"api"`
	Display  DisplayConfig   `json:"display"`
}

// OutputConfig overrides where the server's message ids are kept. Both
// fields are optional; the process-wide store settings apply otherwise.
type OutputConfig struct {
	MessageIDDirectory string `json:"message_id_directory,omitempty"`
	MessageIDFilename  string `json:"message_id_filename,omitempty"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	// TimeBetweenRefreshes is the default refresh interval in seconds (>= 1).
	TimeBetweenRefreshes int `json:"time_between_refreshes"`
	// Username and AvatarURL override the webhook's defaults when set.
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// TelegramConfig publishes to a Telegram chat instead of a Discord webhook.
type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type APIConfig struct {
	BaseServerURL string `json:"base_server_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`

	// Attempts is the retry budget per call (default 5).
	Attempts int `json:"attempts,omitempty"`
	// RetryDelay is a Go duration string for the first retry wait (default "0s").
	RetryDelay string `json:"retry_delay,omitempty"`
	// RatePerSec paces requests to the control API (0 disables pacing).
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	// Timeout is a Go duration string per request (default "15s").
	Timeout string `json:"timeout,omitempty"`
}

type DisplayConfig struct {
	Header      HeaderConfig      `json:"header"`
	Gamestate   GamestateConfig   `json:"gamestate"`
	MapRotation MapRotationConfig `json:"map_rotation"`
}

// EmbedOption is one configured embed field.
type EmbedOption struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Header embed values.
const (
	EmbedReservedVIPSlots = "reserved_vip_slots"
	EmbedCurrentVIPs      = "current_vips"
)

// Gamestate embed values besides the raw gamestate fields.
const (
	EmbedSlots = "slots"
	EmbedScore = "score"
	EmbedEmpty = "empty"
)

var HeaderEmbeds = []string{EmbedReservedVIPSlots, EmbedCurrentVIPs}

var GamestateEmbeds = []string{
	"num_allied_players", "num_axis_players", "allied_score", "axis_score",
	"raw_time_remaining", "time_remaining", "current_map", "next_map",
	EmbedSlots, EmbedScore, EmbedEmpty,
}

// Server name choices for the header title.
const (
	ServerNameFull  = "name"
	ServerNameShort = "short_name"
)

type HeaderConfig struct {
	Enabled              bool          `json:"enabled"`
	Schedule             string        `json:"schedule,omitempty"`
	ServerName           string        `json:"server_name"`
	QuickConnectURL      string        `json:"quick_connect_url,omitempty"`
	BattlemetricsURL     string        `json:"battlemetrics_url,omitempty"`
	DisplayLastRefreshed bool          `json:"display_last_refreshed"`
	LastRefreshText      string        `json:"last_refresh_text"`
	Embeds               []EmbedOption `json:"embeds"`
}

type GamestateConfig struct {
	Enabled              bool          `json:"enabled"`
	Schedule             string        `json:"schedule,omitempty"`
	Image                bool          `json:"image"`
	ScoreFormat          string        `json:"score_format"`
	ScoreFormatGerUS     string        `json:"score_format_ger_us,omitempty"`
	ScoreFormatGerRus    string        `json:"score_format_ger_rus,omitempty"`
	DisplayLastRefreshed bool          `json:"display_last_refreshed"`
	LastRefreshText      string        `json:"last_refresh_text"`
	Embeds               []EmbedOption `json:"embeds"`
}

type MapRotationConfig struct {
	Color RotationColorConfig `json:"color"`
	Embed RotationEmbedConfig `json:"embed"`
}

type RotationColorConfig struct {
	Enabled              bool     `json:"enabled"`
	Schedule             string   `json:"schedule,omitempty"`
	DisplayTitle         bool     `json:"display_title"`
	Title                string   `json:"title"`
	CurrentMapColor      string   `json:"current_map_color"`
	NextMapColor         string   `json:"next_map_color"`
	OtherMapColor        string   `json:"other_map_color"`
	DisplayLegend        bool     `json:"display_legend"`
	LegendTitle          string   `json:"legend_title"`
	Legend               []string `json:"legend"`
	DisplayLastRefreshed bool     `json:"display_last_refreshed"`
	LastRefreshText      string   `json:"last_refresh_text"`
}

type RotationEmbedConfig struct {
	Enabled              bool   `json:"enabled"`
	Schedule             string `json:"schedule,omitempty"`
	DisplayTitle         bool   `json:"display_title"`
	Title                string `json:"title"`
	CurrentMap           string `json:"current_map"`
	NextMap              string `json:"next_map"`
	OtherMap             string `json:"other_map"`
	DisplayLegend        bool   `json:"display_legend"`
	Legend               string `json:"legend"`
	DisplayLastRefreshed bool   `json:"display_last_refreshed"`
	LastRefreshText      string `json:"last_refresh_text"`
}

// ColorCodeBlocks maps a configured color to the code block language that
// Discord highlights in that color.
var ColorCodeBlocks = map[string]string{
	"none":   "",
	"yellow": "fix",
	"orange": "arm",
	"red":    "ml",
	"cyan":   "yaml",
	"green":  "bash",
	"blue":   "ini",
}

// DocumentID names the server's message id document: the stem of
// output.message_id_filename when set, else the server identifier.
func (s *Server) DocumentID() string {
	if s.Output.MessageIDFilename != "" {
		return fileStem(s.Output.MessageIDFilename)
	}
	return s.ID
}
