package main

import (
	"bytes"
	"context"
	"flag"
	"ledger-chat/domain"
	"ledger-chat/ledger/archive"
	"ledger-chat/validator"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	req := require.New(t)
	t.Setenv("ARCHIVE_FILEPATH", "/tmp/archive")

	cfg, err := ParseConfig(flag.NewFlagSet("post", flag.ContinueOnError), []string{"-room", "lounge", "-create"})
	req.NoError(err)
	req.Equal("/tmp/archive", cfg.ArchiveFilepath)
	req.Equal("identity.key", cfg.IdentityFilepath)
	req.True(cfg.Create)

	// Both or none of -create and -message are refused
	_, err = ParseConfig(flag.NewFlagSet("post", flag.ContinueOnError), []string{"-room", "lounge"})
	req.Error(err)
	_, err = ParseConfig(flag.NewFlagSet("post", flag.ContinueOnError), []string{"-room", "lounge", "-create", "-message", "hi"})
	req.Error(err)
}

func TestRun(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	base := Config{
		ArchiveFilepath:      filepath.Join(dir, "archive"),
		IdentityFilepath:     filepath.Join(dir, "identity.key"),
		RoomNameMaxLength:    64,
		RoomMessageMaxLength: 1024,
		Room:                 "lounge",
	}
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	var out bytes.Buffer

	// When a room is created on an empty archive, then a message posted
	create := base
	create.Create = true
	req.NoError(run(ctx, create, slog.Default(), &out, clock))
	post := base
	post.Message = "hello"
	req.NoError(run(ctx, post, slog.Default(), &out, clock))
	req.Contains(out.String(), "create_public_room appended in block 1")
	req.Contains(out.String(), "public_room_message appended in block 2")

	// Then creating the same room again is rejected
	err := run(ctx, create, slog.Default(), &out, clock)
	req.ErrorIs(err, validator.ErrRoomNameTaken)

	// And invalid input never reaches the archive
	invalid := base
	invalid.Room = "not a room"
	invalid.Create = true
	req.ErrorIs(run(ctx, invalid, slog.Default(), &out, clock), domain.ErrInvalidRoomName)

	a, err := archive.Open(base.ArchiveFilepath, slog.Default())
	req.NoError(err)
	defer func() { _ = a.Close() }()
	height, err := a.Height()
	req.NoError(err)
	req.Equal(uint64(3), height)
}

func TestRun_SameMessageTwice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	base := Config{
		ArchiveFilepath:      filepath.Join(dir, "archive"),
		IdentityFilepath:     filepath.Join(dir, "identity.key"),
		RoomNameMaxLength:    64,
		RoomMessageMaxLength: 1024,
		Room:                 "lounge",
	}
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	var out bytes.Buffer

	create := base
	create.Create = true
	req.NoError(run(ctx, create, slog.Default(), &out, clock))

	// When the same author says "hi" twice in the same room
	hi := base
	hi.Message = "hi"
	req.NoError(run(ctx, hi, slog.Default(), &out, clock))
	req.NoError(run(ctx, hi, slog.Default(), &out, clock))

	// Then both messages are in the ledger
	req.Contains(out.String(), "public_room_message appended in block 2")
	req.Contains(out.String(), "public_room_message appended in block 3")
}

func TestRun_StricterLocalLimits(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	var out bytes.Buffer

	// Given an archive holding a room name longer than 16 bytes
	long := Config{
		ArchiveFilepath:      filepath.Join(dir, "archive"),
		IdentityFilepath:     filepath.Join(dir, "identity.key"),
		RoomNameMaxLength:    64,
		RoomMessageMaxLength: 1024,
		Room:                 "a-room-name-of-twenty-five",
		Create:               true,
	}
	req.NoError(run(ctx, long, slog.Default(), &out, clock))

	// When a node limited to 16 byte names creates a short room
	short := long
	short.RoomNameMaxLength = 16
	short.Room = "lounge"
	err := run(ctx, short, slog.Default(), &out, clock)

	// Then replaying the existing ledger does not trip on the long name
	req.NoError(err)

	// And the local limit still applies to what it builds
	short.Room = "another-long-room-name"
	req.ErrorIs(run(ctx, short, slog.Default(), &out, clock), domain.ErrInvalidRoomName)
}
