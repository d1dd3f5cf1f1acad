package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		TTL string `yaml:"ttl"`
	} `yaml:"content"`
	Pack struct {
		QuestionsPerQuiz int    `yaml:"questionsPerQuiz"`
		RecentWindowDays int    `yaml:"recentWindowDays"`
		Timezone         string `yaml:"timezone"`
	} `yaml:"pack"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Notify struct {
		AMQPURL string `yaml:"amqpUrl"`
		Queue   string `yaml:"queue"`
	} `yaml:"notify"`
}

// Load reads YAML config from path and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pack.QuestionsPerQuiz <= 0 {
		c.Pack.QuestionsPerQuiz = 3
	}
	if c.Pack.RecentWindowDays < 0 {
		c.Pack.RecentWindowDays = 0
	} else if c.Pack.RecentWindowDays == 0 {
		c.Pack.RecentWindowDays = 3
	}
	if c.Pack.Timezone == "" {
		c.Pack.Timezone = "Europe/Bratislava"
	}
	if c.Notify.Queue == "" {
		c.Notify.Queue = "badge_awarded"
	}
}

// Location returns the pack timezone, UTC when it cannot be loaded.
func (c Config) Location() *time.Location {
	if c.Pack.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Pack.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
