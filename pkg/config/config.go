package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

type ServerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SocketURL      string        `mapstructure:"socket_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type AuthConfig struct {
	TokenFile string `mapstructure:"token_file"`
	Token     string `mapstructure:"token"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.socket_url", "ws://localhost:8080")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("auth.token_file", ".chat-token")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Environment variables take precedence over file values
	if baseURL := v.GetString("CHAT_SERVER_URL"); baseURL != "" {
		config.Server.BaseURL = baseURL
	}

	if socketURL := v.GetString("CHAT_SOCKET_URL"); socketURL != "" {
		config.Server.SocketURL = socketURL
	}

	if token := v.GetString("CHAT_TOKEN"); token != "" {
		config.Auth.Token = token
	}

	return &config, nil
}
