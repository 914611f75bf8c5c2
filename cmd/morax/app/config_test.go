package app

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moraxdb/morax/internal/moraxlog"
)

func TestRegisterFlagsAndApplyDefaults(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlagsAndApplyDefaults("", fs)

	require.Equal(t, moraxlog.FormatLogfmt, cfg.LogFormat)
	require.Equal(t, moraxlog.LevelInfo, cfg.LogLevel)
	require.Equal(t, "0.0.0.0:9092", cfg.Kafka.ListenAddress)
	require.Equal(t, "0.0.0.0:8080", cfg.Pubsub.ListenAddress)
	require.Equal(t, "local", string(cfg.Splits.Backend))
}

func TestRegisterFlagsAndApplyDefaultsOverridable(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	cfg.RegisterFlagsAndApplyDefaults("", fs)

	require.NoError(t, fs.Parse([]string{
		"-kafka.listen-address=127.0.0.1:19092",
		"-pubsub.listen-address=127.0.0.1:18080",
		"-splits.backend=s3",
	}))
	require.Equal(t, "127.0.0.1:19092", cfg.Kafka.ListenAddress)
	require.Equal(t, "127.0.0.1:18080", cfg.Pubsub.ListenAddress)
	require.Equal(t, "s3", string(cfg.Splits.Backend))
}
