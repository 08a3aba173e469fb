// config/config.go
package config

import (
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Generation GenerationConfig `mapstructure:"generation"`
	Battle     BattleConfig     `mapstructure:"battle"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
}

type DatabaseConfig struct {
	// Driver selects the persistence backend: "gorm" or "sql".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GenerationConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	OutputDir  string `mapstructure:"output_dir"`
	PublicPath string `mapstructure:"public_path"`
	// Token is never read from the config file; it comes from the
	// GENERATION_API_TOKEN environment variable so it stays out of
	// version control and never reaches clients.
	Token string `mapstructure:"-"`
}

type BattleConfig struct {
	TimeLimit     int  `mapstructure:"time_limit"`
	StrictTimeout bool `mapstructure:"strict_timeout"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	config.Generation.Token = os.Getenv("GENERATION_API_TOKEN")
	return
}
