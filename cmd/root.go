package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spigell/recruitgenie/internal/backend"
	"github.com/spigell/recruitgenie/internal/gateway"
	"github.com/spigell/recruitgenie/internal/speech"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "recruitgenie"
	envPrefix = "RECRUITGENIE"
)

type Config struct {
	APIURL      string          `mapstructure:"api-url"`
	StorageFile string          `mapstructure:"storage-file"`
	Timeout     time.Duration   `mapstructure:"timeout"`
	UserAgent   string          `mapstructure:"user-agent"`
	Speech      *SpeechConfig   `mapstructure:"speech"`
	Serve       *backend.Config `mapstructure:"serve"`
	AI          *AIConfig       `mapstructure:"ai"`
}

type SpeechConfig struct {
	Input  speech.Command `mapstructure:"input"`
	Output speech.Command `mapstructure:"output"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "recruitgenie is a terminal chat client for the RecruitGenie hiring assistant",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is recruitgenie.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("api-url", gateway.DefaultBaseURL)
	viper.SetDefault("storage-file", "")
	viper.SetDefault("timeout", 60*time.Second)
	viper.SetDefault("user-agent", "recruitgenie-cli")

	viper.SetDefault("speech.input.command", "")
	viper.SetDefault("speech.input.args", []string{})
	viper.SetDefault("speech.output.command", "")
	viper.SetDefault("speech.output.args", []string{})

	viper.SetDefault("serve.listen", backend.DefaultListen)
	viper.SetDefault("serve.db-path", "agent_memory.db")
	viper.SetDefault("serve.allowed-origins", []string{"*"})

	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

func initConfig() {
	// .env is optional, real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		// An explicitly requested config must be readable.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Speech == nil {
		config.Speech = &SpeechConfig{}
	}
	if config.Serve == nil {
		config.Serve = &backend.Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}

	return config, nil
}
