package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Port        int      `mapstructure:"port"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Agents struct {
		ClassifierURL string `mapstructure:"classifier_url"`
		AgentsURL     string `mapstructure:"agents_url"`
		WorkflowURL   string `mapstructure:"workflow_url"`
		EditorURL     string `mapstructure:"editor_url"`

		ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
		GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
		EditTimeout     time.Duration `mapstructure:"edit_timeout"`

		Workers int `mapstructure:"workers"`
	} `mapstructure:"agents"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	Logs struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"logs"`
}

// LoadConfig loads the configuration from a file and the environment. An
// empty path falls back to the default search locations.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine, defaults + env cover a dev setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8001)
	viper.SetDefault("server.cors_origins", []string{
		"http://localhost:5174",
		"http://localhost:3000",
	})

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.user", "builder")
	viper.SetDefault("db.name", "maestro_builder")
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("agents.classifier_url", "http://localhost:8005/chat")
	viper.SetDefault("agents.agents_url", "http://localhost:8003/chat")
	viper.SetDefault("agents.workflow_url", "http://localhost:8004/chat")
	viper.SetDefault("agents.editor_url", "http://localhost:8002/chat")

	// Classification and editing are short calls, generation is not.
	viper.SetDefault("agents.classify_timeout", 30*time.Second)
	viper.SetDefault("agents.generate_timeout", 120*time.Second)
	viper.SetDefault("agents.edit_timeout", 60*time.Second)

	viper.SetDefault("agents.workers", 4)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("logs.dir", "storage/logs")
}
