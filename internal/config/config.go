package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultAPIURL         = "http://localhost:8080"
	DefaultPollInterval   = 3 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultPort           = ":8080"
	DefaultDatabase       = "forum.db"
)

type Client struct {
	APIURL         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	LogstashAddr   string
}

type Server struct {
	Port         string
	Database     string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	SessionKey   string
	LogLevel     string
	LogstashAddr string
}

// LoadClient reads the client settings from the environment. It does not
// validate them: command-line flags may still override bad values, so call
// Validate once they are applied.
func LoadClient() (Client, error) {
	cfg := Client{
		APIURL:       getenv("FORUM_API_URL", DefaultAPIURL),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogstashAddr: os.Getenv("LOGSTASH_ADDR"),
	}

	var err error
	if cfg.PollInterval, err = duration("POLL_INTERVAL", DefaultPollInterval); err != nil {
		return Client{}, err
	}
	if cfg.RequestTimeout, err = duration("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func (c Client) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("api url %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api url %q: scheme must be http or https", c.APIURL)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}

func LoadServer() (Server, error) {
	cfg := Server{
		Port:         getenv("PORT", DefaultPort),
		Database:     getenv("DATABASE", DefaultDatabase),
		DBHost:       os.Getenv("DB_HOST"),
		DBPort:       getenv("DB_PORT", "5432"),
		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       os.Getenv("DB_NAME"),
		SessionKey:   os.Getenv("SESSION_KEY"),
		LogLevel:     getenv("LOG_LEVEL", "warn"),
		LogstashAddr: os.Getenv("LOGSTASH_ADDR"),
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.SessionKey == "" {
		return Server{}, errors.New("SESSION_KEY must be set")
	}
	return cfg, nil
}

// UsePostgres reports whether a remote database was configured.
func (s Server) UsePostgres() bool {
	return s.DBHost != ""
}

func (s Server) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
		s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
