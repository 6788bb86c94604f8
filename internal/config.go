package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	SqliteFilepath       string        `env:"SQLITE_FILEPATH,required=true" validate:"required"`
	ArchiveFilepath      string        `env:"ARCHIVE_FILEPATH,required=true" validate:"required"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true" validate:"required"`
	SpaceTitle           string        `env:"SPACE_TITLE,default=Public space" validate:"max=128"`
	Shards               string        `env:"SHARDS"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	PollInterval         time.Duration `env:"POLL_INTERVAL,default=500ms" validate:"gt=0"`
	Follow               bool          `env:"FOLLOW,default=true"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024" validate:"min=1"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"min=0"`
	SearchBatchSize      int           `env:"SEARCH_BATCH_SIZE,default=50" validate:"min=1"`
	SearchFlushTimeout   time.Duration `env:"SEARCH_FLUSH_TIMEOUT,default=1s" validate:"gt=0"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// ArchiveList splits ARCHIVE_FILEPATH on commas, one archive per space.
func (c Config) ArchiveList() []string {
	return SplitList(c.ArchiveFilepath)
}

// ShardList splits SHARDS on commas.
func (c Config) ShardList() []string {
	return SplitList(c.Shards)
}

// SplitList splits a comma separated value, trimming and deduplicating items.
func SplitList(s string) []string {
	return lo.Uniq(lo.Compact(lo.Map(strings.Split(s, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
