package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingAPIKey = errors.New("llm api key not set (OPENAI_API_KEY)")

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	SQLite    SQLiteConfig
	Vector    VectorConfig
	Redis     RedisConfig
	Export    ExportConfig
	Runner    RunnerConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        int
	WriteTimeout       int
	BodyLimit          int
	RateLimitPerMinute int
	// TLS is set when the server sits behind TLS; it turns on HSTS.
	TLS bool
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
	// BreakerThreshold consecutive failures stop calls for BreakerCooldownSec.
	// Zero disables the breaker.
	BreakerThreshold   int
	BreakerCooldownSec int
}

type EmbeddingConfig struct {
	// Provider is "openai" or "hash" (offline, no API calls).
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

type SQLiteConfig struct {
	Path string
}

// VectorConfig selects the nearest-neighbour backend behind the knowledge base.
type VectorConfig struct {
	Backend     string
	Path        string
	Collection  string
	Description string
	Endpoint    string
	APIKey      string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type ExportConfig struct {
	Dir string
}

type RunnerConfig struct {
	TopK           int
	AutoFlagErrors bool
	// VectorsFile adds YAML test vectors to the built-in catalog.
	VectorsFile string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// envAliases maps flat environment names onto config keys so the usual
// OPENAI_API_KEY style variables keep working next to the HALLUC_ prefix.
var envAliases = map[string][]string{
	"llm.apiKey":      {"HALLUC_LLM_APIKEY", "OPENAI_API_KEY"},
	"llm.baseURL":     {"HALLUC_LLM_BASEURL", "LLM_BASE_URL"},
	"llm.model":       {"HALLUC_LLM_MODEL", "MODEL_NAME"},
	"llm.temperature": {"HALLUC_LLM_TEMPERATURE", "TEMPERATURE"},
	"llm.maxTokens":   {"HALLUC_LLM_MAXTOKENS", "MAX_TOKENS"},
	"sqlite.path":     {"HALLUC_SQLITE_PATH", "DATABASE_PATH"},
	"logging.level":   {"HALLUC_LOGGING_LEVEL", "LOG_LEVEL"},
	"server.tls":      {"HALLUC_SERVER_TLS", "HALLUC_TLS"},
}

// Load reads .env, an optional config.yaml and the environment. configFile
// may be empty to use the default search paths.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hallucination-lab")
	}

	v.SetEnvPrefix("HALLUC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}

	return &cfg, nil
}

// Validate reports configuration errors that must stop the process at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature %.2f out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm maxTokens must be positive, got %d", c.LLM.MaxTokens)
	}
	switch c.Vector.Backend {
	case "sqlitevec", "milvus":
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	switch c.Embedding.Provider {
	case "openai", "hash":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 300)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.rateLimitPerMinute", 30)
	v.SetDefault("server.tls", false)

	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.maxTokens", 500)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.breakerThreshold", 5)
	v.SetDefault("llm.breakerCooldownSec", 30)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.apiKey", "")
	v.SetDefault("embedding.baseURL", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batchSize", 100)

	v.SetDefault("sqlite.path", "./data/hallucinations.db")

	v.SetDefault("vector.backend", "sqlitevec")
	v.SetDefault("vector.path", "./data/knowledge.db")
	v.SetDefault("vector.collection", "cybersecurity_kb")
	v.SetDefault("vector.description", "Cybersecurity knowledge base for RAG")
	v.SetDefault("vector.endpoint", "localhost:19530")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlHours", 168)

	v.SetDefault("export.dir", "./data/exports")

	v.SetDefault("runner.topK", 3)
	v.SetDefault("runner.autoFlagErrors", false)
	v.SetDefault("runner.vectorsFile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
