package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`
	OwnerChatID int64  `envconfig:"OWNER_CHAT_ID" default:"0"` // fallback notification chat; 0 = unset

	// Deployment role: "admin" sees and mutates everything, "dealer" is
	// restricted to records carrying its own dealer tag.
	BotMode    string   `envconfig:"BOT_MODE" default:"admin"` // admin|dealer
	DealerName string   `envconfig:"DEALER_NAME" default:"main"`
	Dealers    []string `envconfig:"DEALERS" default:"main"` // known dealer tags, comma-separated

	Timezone       string `envconfig:"TIMEZONE" default:"Asia/Ashgabat"`
	TZOverridePath string `envconfig:"TZ_OVERRIDE_PATH" default:"./data/.tz_override"`

	CheckIntervalMinutes int `envconfig:"CHECK_INTERVAL_MINUTES" default:"1"`
	PreNotifyHours       int `envconfig:"PRE_NOTIFY_HOURS" default:"3"`
	MaxNotifications     int `envconfig:"MAX_NOTIFICATIONS" default:"2"`

	DBPath   string `envconfig:"DB_PATH" default:"./data/subscriptions.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
