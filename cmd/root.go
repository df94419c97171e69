package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "es-reviewer"
)

type Config struct {
	Server *ServerConfig `mapstructure:"server"`
	Line   *LineConfig   `mapstructure:"line"`
	Redis  *RedisConfig  `mapstructure:"redis"`
	AI     *AIConfig     `mapstructure:"ai"`
	Review *ReviewConfig `mapstructure:"review"`
	Ledger *LedgerConfig `mapstructure:"ledger"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type LineConfig struct {
	ChannelSecret          string `mapstructure:"channel-secret"`
	ChannelSecretFile      string `mapstructure:"channel-secret-file"`
	ChannelAccessToken     string `mapstructure:"channel-access-token"`
	ChannelAccessTokenFile string `mapstructure:"channel-access-token-file"`
	APIURL                 string `mapstructure:"api-url"`
}

type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Provider             string        `mapstructure:"provider"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRetries           int           `mapstructure:"max-retries"`
	MaxOutputTokens      int           `mapstructure:"max-output-tokens"`
	Temperature          *float64      `mapstructure:"temperature"`
	Verbosity            string        `mapstructure:"verbosity"`
	ReasoningEffort      string        `mapstructure:"reasoning-effort"`
	StructuredOutput     bool          `mapstructure:"structured-output"`
	PromptCacheKey       string        `mapstructure:"prompt-cache-key"`
	PromptCacheRetention string        `mapstructure:"prompt-cache-retention"`
	MaxLogLength         int           `mapstructure:"max-log-length"`
	EvidenceLength       int           `mapstructure:"evidence-length"`
	OpenAI               *OpenAIConfig `mapstructure:"openai"`
	Gemini               *GeminiConfig `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type ReviewConfig struct {
	CompaniesFile string `mapstructure:"companies-file"`
	MinChars      int    `mapstructure:"min-chars"`
	MaxChars      int    `mapstructure:"max-chars"`
	ChunkLength   int    `mapstructure:"chunk-length"`
	MaxChunks     int    `mapstructure:"max-chunks"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "es-reviewer evaluates entry sheets with an LLM and answers over a LINE bot",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

var envBindings = map[string]string{
	"ai.openai.api-key":         "OPENAI_API_KEY",
	"ai.gemini.api-key":         "GEMINI_API_KEY",
	"line.channel-secret":       "LINE_CHANNEL_SECRET",
	"line.channel-access-token": "LINE_CHANNEL_ACCESS_TOKEN",
	"redis.url":                 "REDIS_URL",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.timeout", "50s")
	viper.SetDefault("ai.max-retries", 2)
	viper.SetDefault("ai.evidence-length", 25)
	viper.SetDefault("review.min-chars", 80)
	viper.SetDefault("review.max-chars", 2000)
	viper.SetDefault("review.chunk-length", 4900)
	viper.SetDefault("review.max-chunks", 5)
	viper.SetDefault("redis.ttl", "6h")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is es-reviewer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Everything has a default or an env binding, so only an explicit or
	// broken config file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Line == nil {
		config.Line = &LineConfig{}
	}
	if config.Redis == nil {
		config.Redis = &RedisConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Review == nil {
		config.Review = &ReviewConfig{}
	}
	if config.Ledger == nil {
		config.Ledger = &LedgerConfig{}
	}

	return config, nil
}
