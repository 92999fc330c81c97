package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	ProbeInterval        time.Duration `env:"PROBE_INTERVAL,default=30s"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=16384"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/history"`
	HistoryLimit         *int          `env:"HISTORY_LIMIT"`
	TimelineCapacity     int           `env:"TIMELINE_CAPACITY,default=128"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AuthTokenKey         string        `env:"AUTH_TOKEN_KEY,default=dev_only_change_me_in_production"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	RequireSignedTokens  bool          `env:"REQUIRE_SIGNED_TOKENS,default=false"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
