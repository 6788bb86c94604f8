package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"ledger-chat/domain"
	"ledger-chat/errors"
	"ledger-chat/internal"
	"ledger-chat/ledger/archive"
	"ledger-chat/moderation"
	"ledger-chat/repositories"
	"ledger-chat/runtime"
	"ledger-chat/search"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	SQLiteFilepath  string `envconfig:"SQLITE_FILEPATH" default:"ledger-chat.sqlite"`
	ArchiveFilepath string `envconfig:"ARCHIVE_FILEPATH"`
	BlugeFilepath   string `envconfig:"BLUGE_FILEPATH"`
	// INSPECT_COLOURS colorizes the table headers
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
	// Message contents are shown censored
	CharReplacement string `envconfig:"MODERATION_CHARACTER_REPLACEMENT" default:"*"`
	CensoredWords   string `envconfig:"CENSORED_WORDS"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		os.Exit(1)
	}
}

// run keeps every deferred close ahead of the exit.
func run() error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	sqlitePath := flag.String("sqlite", cfg.SQLiteFilepath, "Path to the projection database")
	archivePath := flag.String("archive", cfg.ArchiveFilepath, "Path to a space archive, lists its blocks")
	blugePath := flag.String("bluge", cfg.BlugeFilepath, "Path to the search index")
	spaceID := flag.Int64("space", 0, "Only show this space")
	room := flag.String("room", "", "Show the messages of a room of -space")
	query := flag.String("search", "", "Search messages, e.g. \"hello --room general --lang en\"")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	out := os.Stdout

	switch {
	case *archivePath != "":
		a, err := archive.OpenReadOnly(*archivePath, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return renderBlocks(out, a, cfg.Colours)
	case *query != "":
		if *blugePath == "" {
			return fmt.Errorf("BLUGE_FILEPATH or -bluge is required to search")
		}
		moderator, err := newModerator(logger, cfg)
		if err != nil {
			return err
		}
		reader, err := bluge.OpenReader(bluge.DefaultConfig(*blugePath))
		if err != nil {
			return fmt.Errorf("opening the search index: %w", err)
		}
		defer func() { _ = reader.Close() }()
		q := search.NewSearchQuery(*query)
		if *spaceID != 0 {
			q.SpaceID = *spaceID
		}
		return renderHits(context.Background(), out, reader, moderator, q, cfg.Colours)
	case *room != "":
		if *spaceID == 0 {
			return fmt.Errorf("-room needs -space")
		}
		moderator, err := newModerator(logger, cfg)
		if err != nil {
			return err
		}
		store, err := repositories.Open(*sqlitePath, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return renderRoom(out, store, moderator, *spaceID, *room, cfg.Colours)
	default:
		store, err := repositories.Open(*sqlitePath, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return renderSpaces(out, store, *spaceID, cfg.Colours)
	}
}

func newModerator(log *slog.Logger, cfg Config) (*moderation.Moderator, error) {
	char, err := internal.CharacterRune(cfg.CharReplacement)
	if err != nil {
		return nil, err
	}
	return runtime.NewModerator(log, char, internal.SplitList(cfg.CensoredWords))
}

func newTable(w io.Writer, colours bool, header ...string) *tablewriter.Table {
	if colours {
		for i, h := range header {
			header[i] = color.New(color.BgBlack, color.FgGreen).Render(h)
		}
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(!colours)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// renderSpaces lists the stored spaces, or only spaceID when it is not zero.
func renderSpaces(w io.Writer, store *repositories.Store, spaceID int64, colours bool) error {
	var spaces []repositories.Space
	if spaceID != 0 {
		space, found, err := store.OpenSpace(spaceID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("space %d: %w", spaceID, errors.ErrUnknownSpace)
		}
		spaces = append(spaces, space)
	} else {
		var err error
		if spaces, err = store.Spaces().Collect(0); err != nil {
			return err
		}
	}

	table := newTable(w, colours, "ID", "Space", "Title", "Rooms", "Shards", "Share link")
	for _, space := range spaces {
		row, err := spaceRow(store, space)
		if err != nil {
			return err
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func spaceRow(store *repositories.Store, space repositories.Space) ([]string, error) {
	title, err := space.Title()
	if err != nil {
		return nil, err
	}
	root, err := space.RootBlock()
	if err != nil {
		return nil, err
	}
	author, err := space.Author()
	if err != nil {
		return nil, err
	}
	rooms, err := store.PublicRooms(space.ID()).Collect(0)
	if err != nil {
		return nil, err
	}
	shards, err := space.Shards()
	if err != nil {
		return nil, err
	}
	link, err := space.ShareLink()
	if err != nil {
		return nil, err
	}
	encoded, err := link.String()
	if err != nil {
		return nil, err
	}
	return []string{
		strconv.FormatInt(space.ID(), 10),
		domain.SpaceEmoji(root, author) + " " + domain.SpaceShortName(root, author),
		title,
		strconv.Itoa(len(rooms)),
		strconv.Itoa(len(shards)),
		encoded,
	}, nil
}

func renderBlocks(w io.Writer, a *archive.Archive, colours bool) error {
	height, err := a.Height()
	if err != nil {
		return err
	}
	if height == 0 {
		return errors.ErrEmptyLedger
	}

	table := newTable(w, colours, "Height", "Hash", "Producer", "Time", "Transactions")
	for h := uint64(0); h < height; h++ {
		block, found, err := a.Block(h)
		if err != nil {
			return err
		}
		if !found {
			break
		}
		table.Append([]string{
			strconv.FormatUint(block.Height, 10),
			block.Hash().Short(),
			block.Author().Short(),
			block.Timestamp().Format(time.DateTime),
			strconv.Itoa(len(block.Content)),
		})
	}
	table.Render()
	return nil
}

func renderHits(ctx context.Context, w io.Writer, reader *bluge.Reader, moderator *moderation.Moderator, q search.Query, colours bool) error {
	hits, err := search.SearchSnapshot(ctx, reader, q)
	if err != nil {
		return err
	}
	table := newTable(w, colours, "Space", "Room", "Lang", "Author", "When", "Content")
	for _, hit := range hits {
		content, _ := moderator.Censor(hit.Content)
		table.Append([]string{
			strconv.FormatInt(hit.SpaceID, 10),
			hit.Room,
			hit.Lang,
			hit.Author,
			humanize.Time(hit.Timestamp),
			content,
		})
	}
	table.Render()
	return nil
}

// renderRoom lists the messages of a public room, oldest first, censored.
func renderRoom(w io.Writer, store *repositories.Store, moderator *moderation.Moderator, spaceID int64, name string, colours bool) error {
	if _, found, err := store.OpenSpace(spaceID); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("space %d: %w", spaceID, errors.ErrUnknownSpace)
	}
	room, found, err := store.FindPublicRoom(spaceID, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("room %q: %w", name, errors.ErrNotFound)
	}
	messages, err := store.PublicMessages(room.ID()).Collect(0)
	if err != nil {
		return err
	}

	table := newTable(w, colours, "When", "Author", "Content", "Censored")
	for _, message := range messages {
		row, err := messageRow(store, moderator, message)
		if err != nil {
			return err
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func messageRow(store *repositories.Store, moderator *moderation.Moderator, message repositories.PublicMessage) ([]string, error) {
	at, err := message.Timestamp()
	if err != nil {
		return nil, err
	}
	userID, err := message.UserID()
	if err != nil {
		return nil, err
	}
	author, err := authorName(store.OpenUserUnchecked(userID))
	if err != nil {
		return nil, err
	}
	content, err := message.Content()
	if err != nil {
		return nil, err
	}
	censored, words := moderator.Censor(content)
	return []string{
		humanize.Time(at),
		author,
		censored,
		strings.Join(words, ","),
	}, nil
}

// authorName prefers the nickname over the short public key.
func authorName(user repositories.User) (string, error) {
	nickname, err := user.Nickname()
	if err != nil {
		return "", err
	}
	if nickname != nil && *nickname != "" {
		return *nickname, nil
	}
	key, err := user.PublicKey()
	if err != nil {
		return "", err
	}
	return key.Short(), nil
}
