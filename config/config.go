package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	WSURL    string `mapstructure:"ws_url"`
	APIURL   string `mapstructure:"api_url"`
	DeepLink string `mapstructure:"deep_link"`
}

type ClientConfig struct {
	IdentityFile     string `mapstructure:"identity_file"`
	HeartbeatSeconds int    `mapstructure:"heartbeat_seconds"`
	ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type RPCConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // "pq" or "gorm"
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.ws_url", "ws://localhost:5001/ws")
	viper.SetDefault("server.api_url", "http://localhost:5001")
	viper.SetDefault("client.identity_file", "identity.json")
	viper.SetDefault("client.heartbeat_seconds", 15)
	viper.SetDefault("client.reconnect_seconds", 5)
	viper.SetDefault("metrics.address", ":9101")
	viper.SetDefault("rpc.address", ":9102")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
