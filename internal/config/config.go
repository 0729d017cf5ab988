// Package config loads the daemon configuration. Values resolve with flag >
// environment > config file > default precedence; the file and environment
// layers are handled here, flags in main.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the daemon settings. Fields omitted from the JSON file retain
// their defaults, so partial configs are safe.
type Config struct {
	// SerialPort is the serial device of the laser, e.g. /dev/ttyUSB0.
	SerialPort string `json:"serial_port"`
	// Listen is the HTTP listen address.
	Listen string `json:"listen"`
	// DBPath is the sqlite transcript database path.
	DBPath string `json:"db_path"`
	// MQTTBroker enables status publishing when set, e.g. mqtt://host:1883.
	MQTTBroker string `json:"mqtt_broker"`
	// MQTTTopic is the status topic.
	MQTTTopic string `json:"mqtt_topic"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		DBPath:    "laser_transcript.db",
		MQTTTopic: "lasers/femtoferb/status",
	}
}

// Load reads a Config from a JSON file, layered over the defaults. The file
// must have a .json extension and be under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays recognized environment variables onto the config.
// Callers load a .env file first (godotenv) so deployments can keep these
// alongside the binary.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FEMTOCTL_SERIAL_PORT"); v != "" {
		c.SerialPort = v
	}
	if v := os.Getenv("FEMTOCTL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("FEMTOCTL_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("FEMTOCTL_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("FEMTOCTL_MQTT_TOPIC"); v != "" {
		c.MQTTTopic = v
	}
}
