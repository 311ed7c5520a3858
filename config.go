package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds the server's configuration. All values are read once at
// startup from IRC_* environment variables.
type Config struct {
	// Port is the plain TCP listener port.
	Port int `default:"6667"`

	// ServerName is used as the server prefix and in the welcome
	// burst and WHOIS replies.
	ServerName string `split_words:"true" default:"malefirc.local"`

	// Name and password accepted by OPER.
	OperName     string `split_words:"true" default:"admin"`
	OperPassword string `split_words:"true" default:"adminpass"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED"`
	TLSPort    int    `envconfig:"TLS_PORT" default:"6697"`
	TLSCert    string `envconfig:"TLS_CERT"`
	TLSKey     string `envconfig:"TLS_KEY"`

	// Database is the opaque connection string handed to the store.
	// Blank selects the in-memory store.
	Database string

	MOTD string `default:"Welcome to malefirc."`

	// PingInterval is how long a client may be quiet before we send it
	// a PING. Zero disables server-side pings. Clients are never
	// disconnected for idling.
	PingInterval time.Duration `split_words:"true" default:"3m"`

	// HistoryRetention, when non-zero, is how long history entries are
	// kept before the hourly sweeper deletes them.
	HistoryRetention time.Duration `split_words:"true"`
}

// loadConfig reads and checks the configuration.
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("irc", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "processing environment")
	}

	if cfg.TLSEnabled && (cfg.TLSCert == "" || cfg.TLSKey == "") {
		return Config{}, errors.New(
			"IRC_TLS_CERT and IRC_TLS_KEY are required when TLS is enabled")
	}

	return cfg, nil
}
