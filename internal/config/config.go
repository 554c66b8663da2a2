package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	ScriptProvider string
	GeminiAPIKeys  []string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string

	ElevenLabsAPIKeys []string
	ElevenLabsModelID string
	DefaultVoiceID    string
	VoicesFile        string

	KieAPIKey         string
	KieBaseURL        string
	VideoAspectRatio  string
	VideoPollInterval time.Duration
	VideoMaxWait      time.Duration

	FFprobePath  string
	FFmpegPath   string
	ProbeTimeout time.Duration

	SegmentConcurrency int
	SyncEnabled        bool
	Transition         string
	BrandCharacter     string

	StorageDriver string
	DatabasePath  string
	MongoURI      string
	MongoDatabase string
	MediaRoot     string

	HTTPAddr         string
	TelegramBotToken string
	DefaultLang      string
	ProxyURLs        []string
	LogLevel         string
}

// Load reads the configuration from the environment, after merging a .env
// file when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	var errs []string
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			errs = append(errs, fmt.Sprintf("required environment variable %s is not set", key))
		}
		return v
	}
	number := func(key string, fallback int) int {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
			return fallback
		}
		return n
	}
	seconds := func(key string, fallback int) time.Duration {
		return time.Duration(number(key, fallback)) * time.Second
	}

	cfg := &Config{
		ScriptProvider: strings.ToLower(getEnv("SCRIPT_PROVIDER", "gemini")),
		GeminiAPIKeys:  splitList(getEnv("GEMINI_API_KEYS", "")),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),

		ElevenLabsAPIKeys: splitList(required("ELEVENLABS_API_KEYS")),
		ElevenLabsModelID: getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		DefaultVoiceID:    getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		VoicesFile:        getEnv("VOICES_FILE", "voices.json"),

		KieAPIKey:         required("KIE_AI_API_KEY"),
		KieBaseURL:        getEnv("KIE_AI_BASE_URL", "https://api.kie.ai/api/v1"),
		VideoAspectRatio:  getEnv("VIDEO_ASPECT_RATIO", "portrait"),
		VideoPollInterval: seconds("VIDEO_POLL_INTERVAL", 15),
		VideoMaxWait:      seconds("VIDEO_MAX_WAIT", 300),

		FFprobePath:  getEnv("FFPROBE_PATH", "ffprobe"),
		FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
		ProbeTimeout: seconds("PROBE_TIMEOUT", 10),

		SegmentConcurrency: number("SEGMENT_CONCURRENCY", 4),
		Transition:         strings.ToLower(getEnv("TRANSITION", "hold")),
		BrandCharacter:     getEnv("BRAND_CHARACTER", "no_face"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "sqlite")),
		DatabasePath:  getEnv("DATABASE_PATH", "./sync_data.db"),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "shorts_sync"),
		MediaRoot:     getEnv("MEDIA_ROOT", "./data/media"),

		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		DefaultLang:      getEnv("DEFAULT_LANG", "en"),
		ProxyURLs:        splitList(getEnv("PROXY_URLS", "")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	sync, err := parseBool(getEnv("SYNC_ENABLED", "true"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SyncEnabled = sync

	switch cfg.ScriptProvider {
	case "gemini":
		if len(cfg.GeminiAPIKeys) == 0 {
			errs = append(errs, "GEMINI_API_KEYS is required when SCRIPT_PROVIDER is gemini")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			errs = append(errs, "OPENAI_API_KEY is required when SCRIPT_PROVIDER is openai")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown SCRIPT_PROVIDER %q", cfg.ScriptProvider))
	}
	if cfg.Transition != "hold" && cfg.Transition != "fade" {
		errs = append(errs, fmt.Sprintf("unknown TRANSITION %q", cfg.Transition))
	}
	if cfg.StorageDriver == "mongo" && cfg.MongoURI == "" {
		errs = append(errs, "MONGO_URI is required when STORAGE_DRIVER is mongo")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// LoadConfig is Load for process startup: any error is fatal.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: could not load configuration")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("SYNC_ENABLED must be a boolean, got %q", raw)
}
