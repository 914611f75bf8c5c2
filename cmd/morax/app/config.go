// Package app wires the Morax broker's two front doors — the Kafka TCP
// listener and the Pub/Sub HTTP server — against a shared metadata store
// and split storage backend, and runs them as a dskit service.Manager.
package app

import (
	"flag"

	"github.com/moraxdb/morax/internal/kafkabroker"
	"github.com/moraxdb/morax/internal/moraxlog"
	"github.com/moraxdb/morax/internal/objstore"
)

// Config is the root config for the Morax broker process.
type Config struct {
	LogFormat moraxlog.Format `yaml:"log_format"`
	LogLevel  moraxlog.Level  `yaml:"log_level"`

	MetastoreDSN string `yaml:"metastore_dsn"`

	Kafka  kafkabroker.Config `yaml:"kafka,omitempty"`
	Pubsub PubsubConfig       `yaml:"pubsub,omitempty"`
	Splits objstore.Config    `yaml:"splits,omitempty"`
}

// PubsubConfig configures the Pub/Sub HTTP front door.
type PubsubConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// RegisterFlagsAndApplyDefaults registers every component's flags under its
// own sub-prefix, the same pattern the teacher's root Config follows for
// each of its modules.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.LogFormat = moraxlog.FormatLogfmt
	c.LogLevel = moraxlog.LevelInfo
	f.StringVar((*string)(&c.LogFormat), "log.format", string(moraxlog.FormatLogfmt), "Log format: logfmt or json.")
	f.StringVar((*string)(&c.LogLevel), "log.level", string(moraxlog.LevelInfo), "Minimum log level: debug, info, warn, or error.")

	f.StringVar(&c.MetastoreDSN, "metastore.dsn", "postgres://localhost/morax?sslmode=disable", "Postgres connection string for the metadata store.")

	c.Kafka.RegisterFlagsAndApplyDefaults(prefix+"kafka", f)

	c.Pubsub.ListenAddress = "0.0.0.0:8080"
	f.StringVar(&c.Pubsub.ListenAddress, prefix+"pubsub.listen-address", c.Pubsub.ListenAddress, "Address the Pub/Sub HTTP server listens on.")

	c.Splits.RegisterFlagsAndApplyDefaults(prefix+"splits", f)
}
