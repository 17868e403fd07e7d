package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret             string        `env:"JWT_SECRET,required=true"`
	BadgerFilepath        string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath         string        `env:"BLUGE_FILEPATH,required=true"`
	BufferSize            int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize  int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	DeliveryTimeout       time.Duration `env:"DELIVERY_TIMEOUT,default=5s"`
	IngestionTimeout      time.Duration `env:"INGESTION_TIMEOUT,default=3s"`
	HistoryPageLimit      int           `env:"HISTORY_PAGE_LIMIT,default=50"`
	MaxContentLength      int           `env:"MAX_CONTENT_LENGTH,default=4000"`
	TypingIdleWindow      time.Duration `env:"TYPING_IDLE_WINDOW,default=7s"`
	PresenceSweepInterval time.Duration `env:"PRESENCE_SWEEP_INTERVAL,default=1s"`
	TelemetryInterval     time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	CharReplacement       string        `env:"CHARACTER_REPLACEMENT,default=*"`
	ModerationWordsFile   string        `env:"MODERATION_WORDS_FILE"`
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}
