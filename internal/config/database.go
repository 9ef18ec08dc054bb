package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envDatabaseURL = "DATABASE_URL"
	envDBHost      = "DB_HOST"
	envDBPort      = "DB_PORT"
	envDBUser      = "DB_USER"
	envDBPassword  = "DB_PASSWORD"
	envDBName      = "DB_NAME"
	envDBSSLMode   = "DB_SSLMODE"
)

// DatabaseConfig holds connection settings for the application database.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a postgres connection string. An explicit URL wins over the
// individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type configFile struct {
	Database DatabaseConfig `yaml:"database"`
}

func loadDatabase() DatabaseConfig {
	cfg := DatabaseConfig{
		Host:    "localhost",
		Port:    5432,
		SSLMode: "disable",
	}
	if fromFile, ok := readConfigFile(envOrDefault(envConfigFile, defaultConfigFile)); ok {
		cfg = fromFile.Database
	}

	// Environment always wins over the file.
	cfg.URL = envOrDefault(envDatabaseURL, cfg.URL)
	cfg.Host = envOrDefault(envDBHost, cfg.Host)
	cfg.User = envOrDefault(envDBUser, cfg.User)
	cfg.Password = envOrDefault(envDBPassword, cfg.Password)
	cfg.DBName = envOrDefault(envDBName, cfg.DBName)
	cfg.SSLMode = envOrDefault(envDBSSLMode, cfg.SSLMode)
	if raw := os.Getenv(envDBPort); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	return cfg
}

// readConfigFile parses an optional YAML config file, substituting ${VAR}
// placeholders from the environment before unmarshalling.
func readConfigFile(path string) (configFile, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return configFile{}, false
	}

	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		content = strings.ReplaceAll(content, "${"+pair[0]+"}", pair[1])
	}

	var parsed configFile
	if err := yaml.Unmarshal([]byte(content), &parsed); err != nil {
		return configFile{}, false
	}
	return parsed, true
}
