package internal

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the XDG directories and the env prefix.
const AppName = "insight"

// Config holds application settings
type Config struct {
	// Models
	OpenAIAPIKey       string
	GeminiAPIKey       string
	SummaryModel       string
	SummaryTemperature float64
	ChatProvider       string
	ChatModel          string
	ChatTemperature    float64
	EmbeddingModel     string
	Prompt             string

	// Retrieval
	ChunkSize    int
	ChunkOverlap int
	VideoTopK    int
	TopK         int
	MaxToolCalls int

	// Paper store
	PaperStore     string
	DatabaseURL    string
	PaperTable     string
	MilvusAddr     string
	MilvusUsername string
	MilvusPassword string
	MilvusAPIKey   string

	// Sessions and history
	RedisURL   string
	HistoryTTL time.Duration
	SessionTTL time.Duration

	// Timeouts per external call
	TranscriptTimeout time.Duration
	CompletionTimeout time.Duration
	RetrievalTimeout  time.Duration
	ChatTimeout       time.Duration

	// HTTP
	Port        int
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int

	Environment string
	Verbose     bool
	Quiet       bool

	// Fixed XDG paths (not configurable)
	ConfigDir      string
	DataDir        string
	CacheDir       string
	TranscriptsDir string
	LogFile        string
}

//go:embed config.toml prompt.txt
var defaultFS embed.FS

// ensureDefaultFile creates configDir/embedFilename from the embedded
// default unless it already exists.
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)
	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}
	return nil
}

// EnsureDefaultConfig writes the default config.toml on first run.
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultPrompt writes the default summary prompt on first run.
func EnsureDefaultPrompt(configDir string) error {
	return ensureDefaultFile(configDir, "prompt.txt", "prompt template")
}

func setDefaults(v *viper.Viper, transcriptsDir string) {
	v.SetDefault("summary_model", "gpt-4o")
	v.SetDefault("summary_temperature", 0.7)
	v.SetDefault("chat_provider", "openai")
	v.SetDefault("chat_model", "gpt-4")
	v.SetDefault("chat_temperature", 0.5)
	v.SetDefault("embedding_model", "text-embedding-ada-002")
	v.SetDefault("prompt", "") // empty uses prompt.txt from the config dir

	v.SetDefault("chunk_size", 1024)
	v.SetDefault("chunk_overlap", 20)
	v.SetDefault("video_top_k", 2)
	v.SetDefault("top_k", 5)
	v.SetDefault("max_tool_calls", 5)

	v.SetDefault("paper_store", "pgvector")
	v.SetDefault("paper_table", "arxiv_docs_2024_03_08")
	v.SetDefault("milvus_addr", "localhost:19530")

	v.SetDefault("history_ttl", 24*time.Hour)
	v.SetDefault("session_ttl", 30*time.Minute)

	v.SetDefault("transcript_timeout", 2*time.Minute)
	v.SetDefault("completion_timeout", 2*time.Minute)
	v.SetDefault("retrieval_timeout", 30*time.Second)
	v.SetDefault("chat_timeout", 3*time.Minute)

	v.SetDefault("port", 8080)
	v.SetDefault("cors_origins", []string{"http://localhost", "http://localhost:8080"})
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_burst", 5)

	v.SetDefault("environment", "development")
	v.SetDefault("verbose", false)
	v.SetDefault("transcripts_dir", transcriptsDir)
}

// InitConfig loads defaults, the TOML config file, and the environment.
// configFile overrides the XDG location when set.
func InitConfig(configFile string) (*Config, error) {
	configDir := filepath.Join(xdg.ConfigHome, AppName)
	dataDir := filepath.Join(xdg.DataHome, AppName)
	cacheDir := filepath.Join(xdg.CacheHome, AppName)

	v := viper.New()
	setDefaults(v, filepath.Join(dataDir, "transcripts"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// conventional names without the prefix
	_ = v.BindEnv("openai_api_key", "INSIGHT_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini_api_key", "INSIGHT_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("database_url", "INSIGHT_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "INSIGHT_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("port", "INSIGHT_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	config := &Config{
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		GeminiAPIKey:       v.GetString("gemini_api_key"),
		SummaryModel:       v.GetString("summary_model"),
		SummaryTemperature: v.GetFloat64("summary_temperature"),
		ChatProvider:       v.GetString("chat_provider"),
		ChatModel:          v.GetString("chat_model"),
		ChatTemperature:    v.GetFloat64("chat_temperature"),
		EmbeddingModel:     v.GetString("embedding_model"),
		Prompt:             v.GetString("prompt"),

		ChunkSize:    v.GetInt("chunk_size"),
		ChunkOverlap: v.GetInt("chunk_overlap"),
		VideoTopK:    v.GetInt("video_top_k"),
		TopK:         v.GetInt("top_k"),
		MaxToolCalls: v.GetInt("max_tool_calls"),

		PaperStore:     v.GetString("paper_store"),
		DatabaseURL:    v.GetString("database_url"),
		PaperTable:     v.GetString("paper_table"),
		MilvusAddr:     v.GetString("milvus_addr"),
		MilvusUsername: v.GetString("milvus_username"),
		MilvusPassword: v.GetString("milvus_password"),
		MilvusAPIKey:   v.GetString("milvus_api_key"),

		RedisURL:   v.GetString("redis_url"),
		HistoryTTL: v.GetDuration("history_ttl"),
		SessionTTL: v.GetDuration("session_ttl"),

		TranscriptTimeout: v.GetDuration("transcript_timeout"),
		CompletionTimeout: v.GetDuration("completion_timeout"),
		RetrievalTimeout:  v.GetDuration("retrieval_timeout"),
		ChatTimeout:       v.GetDuration("chat_timeout"),

		Port:        v.GetInt("port"),
		CORSOrigins: v.GetStringSlice("cors_origins"),
		RateLimit:   v.GetFloat64("rate_limit"),
		RateBurst:   v.GetInt("rate_burst"),

		Environment: v.GetString("environment"),
		Verbose:     v.GetBool("verbose"),

		ConfigDir:      configDir,
		DataDir:        dataDir,
		CacheDir:       cacheDir,
		TranscriptsDir: v.GetString("transcripts_dir"),
		LogFile:        filepath.Join(cacheDir, AppName+".log"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap))
	}
	if c.TopK <= 0 || c.VideoTopK <= 0 {
		errs = append(errs, errors.New("top_k and video_top_k must be positive"))
	}
	switch c.ChatProvider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown chat_provider %q", c.ChatProvider))
	}
	switch c.PaperStore {
	case "pgvector", "milvus":
	default:
		errs = append(errs, fmt.Errorf("unknown paper_store %q", c.PaperStore))
	}
	return errors.Join(errs...)
}
