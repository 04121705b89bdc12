package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hllstatus/internal/config"
	"hllstatus/internal/observability/debugsrv"
)

// EnvPrefix prefixes environment overrides, e.g. HLLSTATUS_LOG_LEVEL.
const EnvPrefix = "HLLSTATUS"

// Settings are the process-wide options. Per-server options live in the
// server files under ConfigDir.
type Settings struct {
	ConfigDir   string
	MessagesDir string
	LogsDir     string

	LogLevel        string
	LogConsole      bool
	LogMaxBytes     int64
	LogBackups      int
	LogWebhookURL   string
	LogWebhookLevel string

	StoreDriver   string
	StorePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	SystemdNotify bool
	StopTimeout   time.Duration

	// DebugAddr enables the pprof and status server when set.
	DebugAddr  string
	DebugToken string
}

// flag name, viper key, default, usage
var stringFlags = [][4]string{
	{"config-dir", "config_dir", "config", "directory holding one config file per server"},
	{"messages-dir", "messages_dir", "messages", "directory for message id documents (file store)"},
	{"logs-dir", "logs_dir", "logs", "directory for log files"},
	{"log-level", "log.level", "info", "trace, debug, info, warn or error"},
	{"log-webhook-url", "log.webhook_url", "", "discord webhook receiving warnings and errors"},
	{"log-webhook-level", "log.webhook_level", "warn", "minimum level forwarded to the log webhook"},
	{"store-driver", "store.driver", "file", "message id store: file, sqlite, redis or none"},
	{"store-path", "store.path", "", "sqlite database file (file driver uses --messages-dir)"},
	{"redis-addr", "store.redis_addr", "127.0.0.1:6379", "redis address for the redis store"},
	{"redis-password", "store.redis_password", "", "redis password"},
	{"redis-prefix", "store.redis_prefix", "hllstatus", "redis key prefix"},
	{"stop-timeout", "stop_timeout", "10s", "upper bound for a graceful shutdown"},
	{"debug-addr", "debug.addr", "", "serve pprof and /status on this address (e.g. 127.0.0.1:6060)"},
	{"debug-token", "debug.token", "", "bearer token for the debug server"},
}

// BindFlags registers the process flags on fs and binds them to v. Every
// key can also be set through the environment.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	for _, f := range stringFlags {
		fs.String(f[0], f[2], f[3])
	}
	fs.Bool("log-console", true, "also log to stderr")
	fs.Int64("log-max-bytes", 5<<20, "rotate log files past this size (0 disables rotation)")
	fs.Int("log-backups", 5, "rotated log files to keep")
	fs.Int("redis-db", 0, "redis database number")
	fs.Bool("systemd-notify", true, "send readiness and watchdog notifications to systemd")

	keys := map[string]string{
		"log-console":    "log.console",
		"log-max-bytes":  "log.max_bytes",
		"log-backups":    "log.backups",
		"redis-db":       "store.redis_db",
		"systemd-notify": "systemd.notify",
	}
	for _, f := range stringFlags {
		keys[f[0]] = f[1]
	}
	for name, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return nil
}

// LoadSettings reads the bound values from v.
func LoadSettings(v *viper.Viper) (Settings, error) {
	s := Settings{
		ConfigDir:       strings.TrimSpace(v.GetString("config_dir")),
		MessagesDir:     strings.TrimSpace(v.GetString("messages_dir")),
		LogsDir:         strings.TrimSpace(v.GetString("logs_dir")),
		LogLevel:        v.GetString("log.level"),
		LogConsole:      v.GetBool("log.console"),
		LogMaxBytes:     v.GetInt64("log.max_bytes"),
		LogBackups:      v.GetInt("log.backups"),
		LogWebhookURL:   strings.TrimSpace(v.GetString("log.webhook_url")),
		LogWebhookLevel: v.GetString("log.webhook_level"),
		StoreDriver:     strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
		StorePath:       strings.TrimSpace(v.GetString("store.path")),
		RedisAddr:       v.GetString("store.redis_addr"),
		RedisPassword:   v.GetString("store.redis_password"),
		RedisDB:         v.GetInt("store.redis_db"),
		RedisPrefix:     v.GetString("store.redis_prefix"),
		SystemdNotify:   v.GetBool("systemd.notify"),
		DebugAddr:       strings.TrimSpace(v.GetString("debug.addr")),
		DebugToken:      v.GetString("debug.token"),
	}

	var err error
	if s.StopTimeout, err = config.ParseDurationField("stop_timeout", v.GetString("stop_timeout")); err != nil {
		return Settings{}, err
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = 10 * time.Second
	}
	for name, dir := range map[string]string{"config_dir": s.ConfigDir, "messages_dir": s.MessagesDir, "logs_dir": s.LogsDir} {
		if dir == "" {
			return Settings{}, fmt.Errorf("%s must not be empty", name)
		}
	}
	if s.LogWebhookURL != "" {
		if _, _, err := config.ParseWebhookURL(s.LogWebhookURL); err != nil {
			return Settings{}, fmt.Errorf("log.webhook_url: %w", err)
		}
	}
	if err := debugsrv.CheckConfig(debugsrv.Config{Addr: s.DebugAddr, Token: s.DebugToken}); err != nil {
		return Settings{}, err
	}
	if _, err := mapStoreConfig(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
