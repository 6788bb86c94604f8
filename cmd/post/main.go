// Command post appends a chat event to a local ledger archive, after checking
// it against everything the archive already admitted.
//
//	post -room lounge -create
//	post -room lounge -message "hello"
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"ledger-chat/codec"
	"ledger-chat/domain"
	"ledger-chat/domain/event"
	"ledger-chat/errors"
	"ledger-chat/ledger/archive"
	"ledger-chat/validator"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mama165/sdk-go/logs"
)

type Config struct {
	LogLevel             string `env:"LOG_LEVEL"                envDefault:"WARN"`
	ArchiveFilepath      string `env:"ARCHIVE_FILEPATH,required"`
	IdentityFilepath     string `env:"IDENTITY_FILEPATH"        envDefault:"identity.key"`
	RoomNameMaxLength    int    `env:"ROOM_NAME_MAX_LENGTH"     envDefault:"64"`
	RoomMessageMaxLength int    `env:"ROOM_MESSAGE_MAX_LENGTH"  envDefault:"1024"`
	Room                 string
	Message              string
	Create               bool
}

// ParseConfig reads the environment, then lets flags override it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.ArchiveFilepath, "archive", cfg.ArchiveFilepath, "path of the ledger archive")
	fs.StringVar(&cfg.IdentityFilepath, "identity", cfg.IdentityFilepath, "path of the signing key, created when missing")
	fs.StringVar(&cfg.Room, "room", "", "public room name")
	fs.StringVar(&cfg.Message, "message", "", "message to post in the room")
	fs.BoolVar(&cfg.Create, "create", false, "create the room instead of posting a message")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Create == (cfg.Message != "") {
		return Config{}, fmt.Errorf("exactly one of -create or -message is required")
	}
	return cfg, nil
}

func main() {
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "post: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logs.GetLoggerFromString(cfg.LogLevel)
	if err := run(ctx, cfg, log, os.Stdout, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "post: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *slog.Logger, out io.Writer, now func() time.Time) error {
	rules := domain.NewRules(cfg.RoomNameMaxLength, cfg.RoomMessageMaxLength)
	evt, err := buildEvent(rules, cfg)
	if err != nil {
		return err
	}

	identity, err := archive.LoadOrCreateIdentity(cfg.IdentityFilepath)
	if err != nil {
		return err
	}
	a, err := archive.Open(cfg.ArchiveFilepath, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.RootBlock(); stderrors.Is(err, errors.ErrEmptyLedger) {
		root, err := a.Init(identity, now())
		if err != nil {
			return err
		}
		log.Info("Ledger initialized", "root_block", root.Hash().Short())
	} else if err != nil {
		return err
	}

	c, err := codec.New()
	if err != nil {
		return err
	}
	defer c.Close()

	state := validator.NewState()
	if err := state.Replay(ctx, a.Viewer(), c); err != nil {
		return err
	}

	payload, err := c.Serialize(evt)
	if err != nil {
		return err
	}
	tx := archive.NewTransaction(identity, payload)
	verification, err := tx.Verify()
	if err != nil {
		return err
	}
	if err := state.Validate(verification.Hash, evt); err != nil {
		return err
	}

	block, err := a.Append(identity, now(), tx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s appended in block %d (%s), transaction %s\n",
		evt.Kind(), block.Height, block.Hash().Short(), verification.Hash.Short())
	return err
}

func buildEvent(rules domain.Rules, cfg Config) (event.Event, error) {
	room, err := domain.NewRoomName(rules, cfg.Room)
	if err != nil {
		return nil, err
	}
	if cfg.Create {
		return event.NewCreatePublicRoom(room), nil
	}
	message, err := domain.NewRoomMessage(rules, cfg.Message)
	if err != nil {
		return nil, err
	}
	return event.NewPublicRoomMessage(room, message), nil
}
