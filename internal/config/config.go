package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the photo wall server.
type Config struct {
	// Port is the HTTP/WebSocket server port.
	Port int `envconfig:"PORT" default:"3001"`

	// DatabasePath is the SQLite database file.
	DatabasePath string `envconfig:"DATABASE_PATH" default:"muralla.db"`

	// UploadDir is where normalized image files are written.
	UploadDir string `envconfig:"UPLOAD_DIR" default:"public/uploads"`

	// AllowedOrigins are the CORS origins permitted to call the API.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"https://muralla.creceideas.cl,http://localhost:4321,http://localhost:3000"`

	// MaxUploadBytes caps a single image, whether uploaded directly,
	// fetched from a remote URL, or decoded from base64.
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// SessionTTL is how long an idle bot conversation keeps its state
	// before the flow is abandoned.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"10m"`

	// LogLevel is the minimum slog level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// BotConfig holds configuration for the chat bot process.
type BotConfig struct {
	// Token is the Discord bot token.
	Token string `envconfig:"BOT_TOKEN" required:"true"`

	// APIURL is the base URL of the photo wall server the bot submits to.
	APIURL string `envconfig:"API_URL" default:"http://localhost:3001"`

	// SessionTTL bounds how long a half-finished conversation survives.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"10m"`

	// LogLevel is the minimum slog level.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads server configuration from the environment, honoring a .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}

// LoadBot reads bot configuration from the environment.
func LoadBot() (*BotConfig, error) {
	_ = godotenv.Load()

	var cfg BotConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}
