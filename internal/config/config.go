package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPServer struct {
	Addr           string   `yaml:"address" env:"ADDRESS" env-default:"localhost:8082"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`
}

type Auth struct {
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_TTL" env-default:"200s"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
}

type Config struct {
	Env                 string `yaml:"env" env:"ENV" env-required:"true" env-default:"PROD"`
	URL                 string `yaml:"URL" env:"URL" env-required:"true"`
	DBName              string `yaml:"DB_NAME" env:"DB_NAME" env-required:"true"`
	LendingDurationDays int    `yaml:"lending_duration_days" env:"LENDING_DURATION_DAYS" env-default:"14"`
	Auth                Auth   `yaml:"auth"`
	HTTPServer          `yaml:"http_server" env-required:"true"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path of Config file ")
		flag.Parse()

		configPath = *flags

	}

	if configPath == "" {
		log.Fatal("Config path is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file is not exist: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		log.Fatalf("Cannot read Config file : %s", err.Error())
	}

	return &cfg
}
