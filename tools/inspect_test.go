package main

import (
	"bytes"
	"context"
	"ledger-chat/domain"
	"ledger-chat/errors"
	"ledger-chat/ledger/archive"
	"ledger-chat/moderation"
	"ledger-chat/repositories"
	"ledger-chat/search"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"
)

func TestRenderSpaces(t *testing.T) {
	req := require.New(t)
	store, err := repositories.Open(filepath.Join(t.TempDir(), "chat.sqlite"), slog.Default())
	req.NoError(err)
	defer func() { _ = store.Close() }()

	// Given a space with one room and one shard
	author, err := archive.NewIdentity()
	req.NoError(err)
	root := domain.Hash{1, 2, 3}
	space, err := store.CreateSpace(repositories.SpaceInfo{Title: "Book club", RootBlock: root, Author: author.PublicKey()})
	req.NoError(err)
	req.NoError(space.AddShard("shard.example.org:4000"))
	user, err := store.CreateUser(repositories.UserInfo{SpaceID: space.ID(), PublicKey: author.PublicKey()})
	req.NoError(err)
	_, err = store.CreatePublicRoom(repositories.PublicRoomInfo{
		SpaceID: space.ID(), Name: "general", AuthorID: user.ID(),
		BlockHash: domain.Hash{4}, TransactionHash: domain.Hash{5},
	})
	req.NoError(err)

	// When the spaces are rendered
	var out bytes.Buffer
	req.NoError(renderSpaces(&out, store, 0, false))

	// Then the row shows the title and how to recognize the space
	req.Contains(out.String(), "Book club")
	req.Contains(out.String(), domain.SpaceShortName(root, author.PublicKey()))
	req.Contains(out.String(), domain.SpaceEmoji(root, author.PublicKey()))

	// And an unknown space is reported
	err = renderSpaces(&out, store, 42, false)
	req.ErrorIs(err, errors.ErrUnknownSpace)
}

func TestRenderBlocks(t *testing.T) {
	req := require.New(t)
	a, err := archive.Open(t.TempDir(), slog.Default())
	req.NoError(err)
	defer func() { _ = a.Close() }()
	producer, err := archive.NewIdentity()
	req.NoError(err)

	// Given an empty archive
	var out bytes.Buffer
	req.ErrorIs(renderBlocks(&out, a, false), errors.ErrEmptyLedger)

	// When a root block and one more block are stored
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	root, err := a.Init(producer, at)
	req.NoError(err)
	block, err := a.Append(producer, at.Add(time.Minute), archive.NewTransaction(producer, []byte("payload")))
	req.NoError(err)

	// Then both blocks are listed in chain order
	req.NoError(renderBlocks(&out, a, false))
	rendered := out.String()
	req.Contains(rendered, root.Hash().Short())
	req.Contains(rendered, block.Hash().Short())
	req.Less(bytes.Index(out.Bytes(), []byte(root.Hash().Short())), bytes.Index(out.Bytes(), []byte(block.Hash().Short())))
	req.Contains(rendered, producer.PublicKey().Short())
}

func TestRenderRoom(t *testing.T) {
	req := require.New(t)
	store, err := repositories.Open(filepath.Join(t.TempDir(), "chat.sqlite"), slog.Default())
	req.NoError(err)
	defer func() { _ = store.Close() }()
	moderator, err := moderation.NewModerator([]string{"scam"}, '*', slog.Default())
	req.NoError(err)

	// Given a room with a nicknamed author and an anonymous one
	author, err := archive.NewIdentity()
	req.NoError(err)
	other, err := archive.NewIdentity()
	req.NoError(err)
	space, err := store.CreateSpace(repositories.SpaceInfo{Title: "Market", RootBlock: domain.Hash{1}, Author: author.PublicKey()})
	req.NoError(err)
	nickname := "alice"
	alice, err := store.CreateUser(repositories.UserInfo{SpaceID: space.ID(), PublicKey: author.PublicKey(), Nickname: &nickname})
	req.NoError(err)
	anonymous, err := store.CreateUser(repositories.UserInfo{SpaceID: space.ID(), PublicKey: other.PublicKey()})
	req.NoError(err)
	room, err := store.CreatePublicRoom(repositories.PublicRoomInfo{
		SpaceID: space.ID(), Name: "deals", AuthorID: alice.ID(),
		BlockHash: domain.Hash{2}, TransactionHash: domain.Hash{3},
	})
	req.NoError(err)
	at := time.Now().Add(-time.Hour)
	for i, m := range []struct {
		user    repositories.User
		content string
	}{
		{alice, "fresh apples today"},
		{anonymous, "this offer is a 5c4m"},
	} {
		_, err = store.CreatePublicMessage(repositories.PublicMessageInfo{
			RoomID: room.ID(), UserID: m.user.ID(),
			BlockHash: domain.Hash{4, byte(i)}, TransactionHash: domain.Hash{5, byte(i)},
			Timestamp: at.Add(time.Duration(i) * time.Minute), Content: m.content,
		})
		req.NoError(err)
	}

	// When the room is rendered
	var out bytes.Buffer
	req.NoError(renderRoom(&out, store, moderator, space.ID(), "deals", false))

	// Then messages are listed oldest first, the censored one hidden
	rendered := out.String()
	req.Contains(rendered, "alice")
	req.Contains(rendered, other.PublicKey().Short())
	req.Contains(rendered, "this offer is a ****")
	req.NotContains(rendered, "5c4m")
	req.Contains(rendered, "scam")
	req.Less(bytes.Index(out.Bytes(), []byte("fresh apples")), bytes.Index(out.Bytes(), []byte("this offer")))

	// And unknown rooms or spaces are reported
	req.ErrorIs(renderRoom(&out, store, moderator, space.ID(), "nowhere", false), errors.ErrNotFound)
	req.ErrorIs(renderRoom(&out, store, moderator, 42, "deals", false), errors.ErrUnknownSpace)
}

func TestRenderHits(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	moderator, err := moderation.NewModerator([]string{"phishing"}, '#', slog.Default())
	req.NoError(err)

	// Given an index written by the node then closed
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(dir))
	req.NoError(err)
	req.NoError(search.NewIndex(writer, slog.Default()).Index(search.Document{
		SpaceID: 1, Room: "security", Author: domain.PublicKey{0xed},
		BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{2},
		Timestamp: time.Now(), Content: "report phishing links here",
	}))
	req.NoError(writer.Close())

	// When it is searched read only
	reader, err := bluge.OpenReader(bluge.DefaultConfig(dir))
	req.NoError(err)
	defer func() { _ = reader.Close() }()
	var out bytes.Buffer
	req.NoError(renderHits(context.Background(), &out, reader, moderator, search.NewSearchQuery("links"), false))

	// Then the hit is shown censored
	req.Contains(out.String(), "security")
	req.Contains(out.String(), "report ######## links here")
}
