package projection

import (
	"context"
	"io"
	"ledger-chat/codec"
	"ledger-chat/domain"
	"ledger-chat/domain/event"
	"ledger-chat/errors"
	"ledger-chat/ledger"
	"ledger-chat/repositories"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeTransaction struct {
	payload []byte
	hash    domain.Hash
	author  domain.PublicKey
	valid   bool
}

func (t fakeTransaction) Payload() []byte { return t.payload }
func (t fakeTransaction) Verify() (ledger.Verification, error) {
	return ledger.Verification{Valid: t.valid, Hash: t.hash, Author: t.author}, nil
}

type fakeBlock struct {
	hash domain.Hash
	at   time.Time
	txs  []ledger.Transaction
}

func (b fakeBlock) Hash() domain.Hash                   { return b.hash }
func (b fakeBlock) Author() domain.PublicKey            { return domain.PublicKey{0xed} }
func (b fakeBlock) Timestamp() time.Time                { return b.at }
func (b fakeBlock) Transactions() []ledger.Transaction { return b.txs }

type fakeViewer struct {
	blocks []ledger.Block
	next   int
}

func (v *fakeViewer) Next(ctx context.Context) (ledger.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v.next >= len(v.blocks) {
		return nil, io.EOF
	}
	v.next++
	return v.blocks[v.next-1], nil
}

type fixture struct {
	store *repositories.Store
	codec *codec.Codec
	space repositories.Space
	rules domain.Rules
}

func newFixture(t *testing.T) fixture {
	store, err := repositories.Open(filepath.Join(t.TempDir(), "read_model.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := codec.New()
	require.NoError(t, err)
	t.Cleanup(c.Close)

	space, err := store.CreateSpace(repositories.SpaceInfo{Title: "Garden", RootBlock: domain.Hash{0xff}})
	require.NoError(t, err)
	return fixture{store: store, codec: c, space: space, rules: domain.DefaultRules()}
}

func (f fixture) projector(opts ...Option) *Projector {
	return NewProjector(logs.GetLoggerFromLevel(slog.LevelDebug), f.store, f.codec, f.space.ID(), opts...)
}

func (f fixture) createRoom(t *testing.T, name string) []byte {
	roomName, err := domain.NewRoomName(f.rules, name)
	require.NoError(t, err)
	raw, err := f.codec.Serialize(event.NewCreatePublicRoom(roomName))
	require.NoError(t, err)
	return raw
}

func (f fixture) message(t *testing.T, room, content string) []byte {
	roomName, err := domain.NewRoomName(f.rules, room)
	require.NoError(t, err)
	message, err := domain.NewRoomMessage(f.rules, content)
	require.NoError(t, err)
	raw, err := f.codec.Serialize(event.NewPublicRoomMessage(roomName, message))
	require.NoError(t, err)
	return raw
}

func (f fixture) messages(t *testing.T, room string) []string {
	return roomMessages(t, f.store, f.space.ID(), room)
}

func roomMessages(t *testing.T, store *repositories.Store, spaceID int64, room string) []string {
	r, found, err := store.FindPublicRoom(spaceID, room)
	require.NoError(t, err)
	if !found {
		return nil
	}
	records, err := store.PublicMessages(r.ID()).Collect(0)
	require.NoError(t, err)
	var out []string
	for _, record := range records {
		content, err := record.Content()
		require.NoError(t, err)
		out = append(out, content)
	}
	return out
}

var (
	alice = domain.PublicKey{0xed, 0xa1}
	bob   = domain.PublicKey{0xed, 0xb0}
)

func TestProjector_EndToEnd_Lounge(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	// Given a create event that round trips through the codec
	createRaw := f.createRoom(t, "lounge")
	decoded, err := f.codec.Deserialize(createRaw)
	req.NoError(err)
	name, _ := domain.NewRoomName(f.rules, "lounge")
	req.Equal(event.NewCreatePublicRoom(name), decoded)

	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	// When it is projected for a fresh space
	outcome, _, err := p.Apply(Entry{
		BlockHash: domain.Hash{1}, BlockTimestamp: at,
		TransactionHash: domain.Hash{2}, Author: alice, Payload: createRaw,
	})
	req.NoError(err)
	req.Equal(OutcomeApplied, outcome)

	// Then the room exists and its author has alice's key
	room, found, err := f.store.FindPublicRoom(f.space.ID(), "lounge")
	req.NoError(err)
	req.True(found)
	authorID, err := room.AuthorID()
	req.NoError(err)
	author, found, err := f.store.OpenUser(authorID)
	req.NoError(err)
	req.True(found)
	publicKey, err := author.PublicKey()
	req.NoError(err)
	req.Equal(alice, publicKey)

	// When alice says hi
	outcome, _, err = p.Apply(Entry{
		BlockHash: domain.Hash{3}, BlockTimestamp: at.Add(time.Minute),
		TransactionHash: domain.Hash{4}, Author: alice, Payload: f.message(t, "lounge", "hi"),
	})
	req.NoError(err)
	req.Equal(OutcomeApplied, outcome)

	// Then exactly one message is linked to the room, from the same user
	messages, err := f.store.PublicMessages(room.ID()).Collect(0)
	req.NoError(err)
	req.Len(messages, 1)
	userID, err := messages[0].UserID()
	req.NoError(err)
	req.Equal(authorID, userID)
	timestamp, err := messages[0].Timestamp()
	req.NoError(err)
	req.True(at.Add(time.Minute).Equal(timestamp))
}

func TestProjector_Apply_IsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	entries := []Entry{
		{BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{1}, Author: alice, Payload: f.createRoom(t, "lounge")},
		{BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{2}, Author: bob, Payload: f.message(t, "lounge", "hello")},
	}

	for _, entry := range entries {
		outcome, _, err := p.Apply(entry)
		req.NoError(err)
		req.Equal(OutcomeApplied, outcome)
	}

	// When the same pairs are applied again
	for _, entry := range entries {
		outcome, _, err := p.Apply(entry)
		req.NoError(err)
		req.Equal(OutcomeAlreadyHandled, outcome)
	}

	// Then nothing is duplicated
	req.Equal([]string{"hello"}, f.messages(t, "lounge"))
	count, err := f.store.HandledCount(f.space.ID())
	req.NoError(err)
	req.Equal(int64(2), count)
	rooms, err := f.store.PublicRooms(f.space.ID()).Collect(0)
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestProjector_Apply_ReplayBeforeMarkHandled(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	create := Entry{BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{1}, Author: alice, Payload: f.createRoom(t, "lounge")}
	message := Entry{BlockHash: domain.Hash{2}, TransactionHash: domain.Hash{2}, Author: alice, Payload: f.message(t, "lounge", "hello")}
	_, _, err := p.Apply(create)
	req.NoError(err)

	// Given a run that wrote the message but crashed before marking it handled
	room, _, err := f.store.FindPublicRoom(f.space.ID(), "lounge")
	req.NoError(err)
	user, _, err := f.store.FindUser(f.space.ID(), alice)
	req.NoError(err)
	_, err = f.store.CreatePublicMessage(repositories.PublicMessageInfo{
		RoomID: room.ID(), UserID: user.ID(),
		BlockHash: message.BlockHash, TransactionHash: message.TransactionHash,
		Content: "hello",
	})
	req.NoError(err)

	// When the message is replayed
	outcome, _, err := p.Apply(message)

	// Then it is marked handled without a second row
	req.NoError(err)
	req.Equal(OutcomeApplied, outcome)
	req.Equal([]string{"hello"}, f.messages(t, "lounge"))
	handled, err := f.store.IsHandled(f.space.ID(), message.BlockHash, message.TransactionHash)
	req.NoError(err)
	req.True(handled)
}

func TestProjector_Apply_MessageToUnknownRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	// When a message targets a room nobody created
	outcome, _, err := p.Apply(Entry{
		BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{1},
		Author: alice, Payload: f.message(t, "nowhere", "anyone?"),
	})

	// Then it is dropped without error and no room appears
	req.NoError(err)
	req.Equal(OutcomeDropped, outcome)
	_, found, err := f.store.FindPublicRoom(f.space.ID(), "nowhere")
	req.NoError(err)
	req.False(found)

	// And later transactions still apply
	outcome, _, err = p.Apply(Entry{
		BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{2},
		Author: alice, Payload: f.createRoom(t, "somewhere"),
	})
	req.NoError(err)
	req.Equal(OutcomeApplied, outcome)
}

func TestProjector_Apply_RoomConflict(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	_, _, err := p.Apply(Entry{BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{1}, Author: alice, Payload: f.createRoom(t, "lounge")})
	req.NoError(err)

	// When another transaction creates the same room
	_, _, err = p.Apply(Entry{BlockHash: domain.Hash{2}, TransactionHash: domain.Hash{2}, Author: bob, Payload: f.createRoom(t, "lounge")})

	// Then the projection stops with a conflict and the transaction stays unhandled
	req.ErrorIs(err, errors.ErrRoomConflict)
	handled, err := f.store.IsHandled(f.space.ID(), domain.Hash{2}, domain.Hash{2})
	req.NoError(err)
	req.False(handled)
}

func TestProjector_Apply_DecodeFailureIsFatal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	_, _, err := p.Apply(Entry{BlockHash: domain.Hash{1}, TransactionHash: domain.Hash{1}, Author: alice, Payload: []byte{0xFF}})

	req.ErrorIs(err, errors.ErrDecode)
}

func TestProjector_ReadEvents(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(100 * time.Hour)
	p := f.projector(WithClock(func() time.Time { return now }))

	blocks := []ledger.Block{
		fakeBlock{hash: domain.Hash{0}, at: start},
		fakeBlock{hash: domain.Hash{1}, at: start.Add(10 * time.Hour), txs: []ledger.Transaction{
			fakeTransaction{payload: f.createRoom(t, "lounge"), hash: domain.Hash{1}, author: alice, valid: true},
		}},
		fakeBlock{hash: domain.Hash{2}, at: start.Add(50 * time.Hour), txs: []ledger.Transaction{
			fakeTransaction{payload: f.message(t, "lounge", "forged"), hash: domain.Hash{2}, author: bob, valid: false},
			fakeTransaction{payload: f.message(t, "lounge", "hi"), hash: domain.Hash{3}, author: bob, valid: true},
		}},
	}

	// Given a first run over the first two blocks only
	var first []event.DomainEvent
	err := p.ReadEvents(context.Background(), &fakeViewer{blocks: blocks[:2]}, func(evt event.DomainEvent) {
		first = append(first, evt)
	})
	req.NoError(err)
	req.Len(first, 2)
	req.IsType(event.CaughtUp{}, first[0])
	req.IsType(event.Projected{}, first[1])

	// When the whole ledger is read again
	var second []event.DomainEvent
	err = p.ReadEvents(context.Background(), &fakeViewer{blocks: blocks}, func(evt event.DomainEvent) {
		second = append(second, evt)
	})
	req.NoError(err)

	// Then the handled transaction is verified, then caught up, then one new event
	req.Len(second, 3)
	verifying, ok := second[0].(event.Verifying)
	req.True(ok)
	req.InDelta(0.1, verifying.Fraction, 0.0001)
	req.IsType(event.CaughtUp{}, second[1])
	projected, ok := second[2].(event.Projected)
	req.True(ok)
	req.Equal(bob, projected.Author)
	req.Equal(event.KindPublicRoomMessage, projected.Event.Kind())

	// And the forged transaction was ignored
	req.Equal([]string{"hi"}, f.messages(t, "lounge"))
}

func TestProjector_ReadEvents_StopsOnDecodeFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector()

	blocks := []ledger.Block{
		fakeBlock{hash: domain.Hash{1}, txs: []ledger.Transaction{
			fakeTransaction{payload: []byte{7}, hash: domain.Hash{1}, author: alice, valid: true},
			fakeTransaction{payload: f.createRoom(t, "lounge"), hash: domain.Hash{2}, author: alice, valid: true},
		}},
	}

	err := p.ReadEvents(context.Background(), &fakeViewer{blocks: blocks}, nil)

	req.ErrorIs(err, errors.ErrDecode)
	_, found, err := f.store.FindPublicRoom(f.space.ID(), "lounge")
	req.NoError(err)
	req.False(found)
}

func TestProjector_ReadEvents_FollowUntilCanceled(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.projector(WithFollow(10 * time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	caughtUp := 0
	err := p.ReadEvents(ctx, &fakeViewer{}, func(evt event.DomainEvent) {
		if _, ok := evt.(event.CaughtUp); ok {
			caughtUp++
		}
	})

	req.ErrorIs(err, context.DeadlineExceeded)
	req.Equal(1, caughtUp)
}

func TestProjector_ReadEvents_TwoSpacesConcurrently(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	other, err := f.store.CreateSpace(repositories.SpaceInfo{Title: "Orchard", RootBlock: domain.Hash{0xee}})
	req.NoError(err)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Given two ledgers reusing the same block and transaction hashes
	tx := func(payload []byte, hash byte, author domain.PublicKey) ledger.Transaction {
		return fakeTransaction{payload: payload, hash: domain.Hash{hash}, author: author, valid: true}
	}
	gardenBlocks := []ledger.Block{
		fakeBlock{hash: domain.Hash{1}, at: at, txs: []ledger.Transaction{
			tx(f.createRoom(t, "lounge"), 1, alice),
			tx(f.message(t, "lounge", "roses are blooming"), 2, alice),
		}},
		fakeBlock{hash: domain.Hash{2}, at: at.Add(time.Minute), txs: []ledger.Transaction{
			tx(f.message(t, "lounge", "lovely"), 3, bob),
		}},
	}
	orchardBlocks := []ledger.Block{
		fakeBlock{hash: domain.Hash{1}, at: at, txs: []ledger.Transaction{
			tx(f.createRoom(t, "lounge"), 1, bob),
			tx(f.createRoom(t, "harvest"), 2, bob),
		}},
		fakeBlock{hash: domain.Hash{2}, at: at.Add(time.Minute), txs: []ledger.Transaction{
			tx(f.message(t, "harvest", "apples are ripe"), 3, bob),
			tx(f.message(t, "lounge", "who brings the cider"), 4, alice),
		}},
	}

	// When both spaces are projected at the same time on the shared store
	projectors := []*Projector{
		f.projector(),
		NewProjector(logs.GetLoggerFromLevel(slog.LevelDebug), f.store, f.codec, other.ID()),
	}
	ledgers := [][]ledger.Block{gardenBlocks, orchardBlocks}
	errs := make([]error, len(projectors))
	var wg sync.WaitGroup
	for i := range projectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = projectors[i].ReadEvents(context.Background(), &fakeViewer{blocks: ledgers[i]}, nil)
		}()
	}
	wg.Wait()
	req.NoError(errs[0])
	req.NoError(errs[1])

	// Then each space only holds its own rooms and messages
	req.Equal([]string{"roses are blooming", "lovely"}, roomMessages(t, f.store, f.space.ID(), "lounge"))
	req.Nil(roomMessages(t, f.store, f.space.ID(), "harvest"))
	req.Equal([]string{"who brings the cider"}, roomMessages(t, f.store, other.ID(), "lounge"))
	req.Equal([]string{"apples are ripe"}, roomMessages(t, f.store, other.ID(), "harvest"))

	gardenRooms, err := f.store.PublicRooms(f.space.ID()).Collect(0)
	req.NoError(err)
	req.Len(gardenRooms, 1)
	orchardRooms, err := f.store.PublicRooms(other.ID()).Collect(0)
	req.NoError(err)
	req.Len(orchardRooms, 2)

	// And the handled markers are counted per space
	handled, err := f.store.HandledCount(f.space.ID())
	req.NoError(err)
	req.Equal(int64(3), handled)
	handled, err = f.store.HandledCount(other.ID())
	req.NoError(err)
	req.Equal(int64(4), handled)
	done, err := f.store.IsHandled(other.ID(), domain.Hash{2}, domain.Hash{4})
	req.NoError(err)
	req.True(done)
	done, err = f.store.IsHandled(f.space.ID(), domain.Hash{2}, domain.Hash{4})
	req.NoError(err)
	req.False(done)
}
