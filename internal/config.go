package internal

import (
	"fmt"
	"match-chat/domain"
	"strings"
	"time"
)

const (
	StoreBadger = "badger"
	StoreDynamo = "dynamodb"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,default=./data/bluge"`
	DynamoTable    string `env:"DYNAMO_TABLE,default=match-chat"`
	AWSRegion      string `env:"AWS_REGION,default=eu-west-3"`

	S3Bucket         string        `env:"S3_BUCKET,required=true"`
	AttachmentURLTTL time.Duration `env:"ATTACHMENT_URL_TTL,default=15m"`

	JWTSecret     string        `env:"JWT_SECRET,required=true"`
	JWTIssuer     string        `env:"JWT_ISSUER,default=match-chat"`
	AuthTimeout   time.Duration `env:"AUTH_TIMEOUT,default=10s"`
	ClientOrigins string        `env:"CLIENT_ORIGINS,default=*"`

	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	NumberOfShards       int           `env:"NUMBER_OF_SHARDS,default=8"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s"`

	RecommendationURL     string        `env:"RECOMMENDATION_URL"`
	RecommendationTimeout time.Duration `env:"RECOMMENDATION_TIMEOUT,default=3s"`
	RecentlyActiveWindow  time.Duration `env:"RECENTLY_ACTIVE_WINDOW,default=5m"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=true"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxContentLength  int    `env:"MAX_CONTENT_LENGTH,default=2000"`

	DebugPort       int           `env:"DEBUG_PORT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Validate rejects values the process cannot start with.
func (c Config) Validate() error {
	switch {
	case c.StoreDriver != StoreBadger && c.StoreDriver != StoreDynamo:
		return fmt.Errorf("STORE_DRIVER must be %s or %s, got %q", StoreBadger, StoreDynamo, c.StoreDriver)
	case c.NumberOfShards < 1:
		return fmt.Errorf("NUMBER_OF_SHARDS must be positive, got %d", c.NumberOfShards)
	case c.BufferSize < 1 || c.ConnectionBufferSize < 1:
		return fmt.Errorf("BUFFER_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	case c.RecentlyActiveWindow > domain.MaxRecentlyActiveWindow:
		return fmt.Errorf("RECENTLY_ACTIVE_WINDOW is capped at %s, got %s", domain.MaxRecentlyActiveWindow, c.RecentlyActiveWindow)
	case c.MaxContentLength < 1:
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.ClientOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
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
