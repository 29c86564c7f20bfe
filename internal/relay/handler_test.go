package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/memory"
	"github.com/cwrk-planet/chat-relay/internal/registry"
	"github.com/cwrk-planet/chat-relay/internal/service"
	"github.com/cwrk-planet/chat-relay/internal/session"
	"github.com/cwrk-planet/chat-relay/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler *Handler
	reg     *registry.Registry
	repo    *memory.MessageRepository
}

func newFixture(t *testing.T, repo service.MessageRepository) *fixture {
	t.Helper()

	pool := worker.NewPool(worker.PoolConfig{NumWorkers: 2, QueueSize: 8})
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	mem := memory.NewMessageRepository(nil)
	if repo == nil {
		repo = mem
	}
	reg := registry.New()
	chat := service.NewChatService(repo, pool, service.ChatConfig{})
	h := NewHandler(session.NewStore(), reg, chat, NewDispatcher(reg, nil), "Guest")

	return &fixture{handler: h, reg: reg, repo: mem}
}

func (f *fixture) connect(t *testing.T, id, user string) *fakeConn {
	t.Helper()
	c := newFakeConn(id)
	require.NoError(t, f.handler.OnConnect(c, user))
	return c
}

func payloadOf[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func TestHandler_JoinAndLeaveAnnounce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.connect(t, "c1", "alice")
	bob := f.connect(t, "c2", "bob")

	require.NoError(t, f.handler.OnJoin(ctx, "c1", "tech"))
	require.NoError(t, f.handler.OnJoin(ctx, "c2", "tech"))
	require.NoError(t, f.handler.OnLeave(ctx, "c1", "tech"))

	got := alice.received(t)
	require.Len(t, got, 2)
	assert.Equal(t, "alice joined tech", payloadOf[SystemEvent](t, got[0]).Text)
	assert.Equal(t, "bob joined tech", payloadOf[SystemEvent](t, got[1]).Text)

	got = bob.received(t)
	require.Len(t, got, 2)
	assert.Equal(t, "alice left tech", payloadOf[SystemEvent](t, got[1]).Text)
}

func TestHandler_GuestName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	c := f.connect(t, "c1", "  ")

	require.NoError(t, f.handler.OnJoin(ctx, "c1", "general"))
	assert.Equal(t, "Guest joined general", payloadOf[SystemEvent](t, c.received(t)[0]).Text)
}

func TestHandler_MessageBroadcastsStoredTimestamp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.connect(t, "c1", "alice")
	bob := f.connect(t, "c2", "bob")
	carol := f.connect(t, "c3", "carol")
	require.NoError(t, f.handler.OnJoin(ctx, "c1", "tech"))
	require.NoError(t, f.handler.OnJoin(ctx, "c2", "tech"))
	require.NoError(t, f.handler.OnJoin(ctx, "c3", "general"))

	msg, err := f.handler.OnMessage(ctx, "c1", "tech", "hello")
	require.NoError(t, err)

	stored, err := f.repo.Recent(ctx, "tech", 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "alice", stored[0].Username)
	assert.Equal(t, "hello", stored[0].Text)
	assert.True(t, stored[0].CreatedAt.Equal(msg.CreatedAt))

	for _, c := range []*fakeConn{alice, bob} {
		frames := c.received(t)
		last := frames[len(frames)-1]
		require.Equal(t, TypeMessage, last.Type)
		ev := payloadOf[MessageEvent](t, last)
		assert.Equal(t, "alice", ev.Username)
		assert.Equal(t, "hello", ev.Text)
		assert.True(t, ev.CreatedAt.Equal(stored[0].CreatedAt))
	}

	// carol only saw her own join
	assert.Len(t, carol.received(t), 1)
}

func TestHandler_EmptyMessageNotStoredOrBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.connect(t, "c1", "alice")
	require.NoError(t, f.handler.OnJoin(ctx, "c1", "general"))

	_, err := f.handler.OnMessage(ctx, "c1", "general", "   ")
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	stored, err := f.repo.Recent(ctx, "general", 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Len(t, alice.received(t), 1)
}

type failingRepo struct{ service.MessageRepository }

func (failingRepo) Append(context.Context, string, string, string) (*domain.Message, error) {
	return nil, errors.New("disk full")
}

func TestHandler_PersistenceFailureNotBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingRepo{})
	alice := f.connect(t, "c1", "alice")
	require.NoError(t, f.handler.OnJoin(ctx, "c1", "general"))

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, err := f.handler.OnMessage(ctx, "c1", "general", "hi")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Len(t, alice.received(t), 1)

	// one error line per failure, carrying the room
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, buf.String())
	assert.Contains(t, lines[0], `"room":"general"`)
}

func TestHandler_UnauthenticatedAndTerminalDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.handler.OnJoin(ctx, "nobody", "general"), domain.ErrUnauthenticated)
	assert.Empty(t, f.reg.Members("general"))

	f.connect(t, "c1", "alice")
	require.NoError(t, f.handler.OnJoin(ctx, "c1", "a"))
	require.NoError(t, f.handler.OnJoin(ctx, "c1", "b"))

	left := f.handler.OnDisconnect("c1")
	assert.ElementsMatch(t, []string{"a", "b"}, left)
	assert.Empty(t, f.reg.Members("a"))
	assert.Empty(t, f.reg.Members("b"))

	assert.ErrorIs(t, f.handler.OnJoin(ctx, "c1", "a"), domain.ErrUnauthenticated)
	_, err := f.handler.OnMessage(ctx, "c1", "a", "late")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.ErrorIs(t, f.handler.OnLeave(ctx, "c1", "a"), domain.ErrUnauthenticated)
}

func TestHandler_JoinRacingDisconnectLeavesNoMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	const conns = 50

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		id := fmt.Sprintf("c%d", i)
		f.connect(t, id, id)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.handler.OnJoin(ctx, id, "general")
		}()
		go func() {
			defer wg.Done()
			f.handler.OnDisconnect(id)
		}()
	}
	wg.Wait()

	assert.Empty(t, f.reg.Members("general"))
}

func TestHandler_Handle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	alice := f.connect(t, "c1", "alice")

	require.NoError(t, f.handler.Handle(ctx, "c1", JoinCommand{Room: "tech"}))
	require.NoError(t, f.handler.Handle(ctx, "c1", SendCommand{Room: "tech", Text: "hey"}))
	require.NoError(t, f.handler.Handle(ctx, "c1", LeaveCommand{Room: "tech"}))

	types := make([]string, 0, 3)
	for _, fr := range alice.received(t) {
		types = append(types, fr.Type)
	}
	// the leave notice is emitted after alice has left, so she does not see it
	assert.Equal(t, []string{TypeSystem, TypeMessage}, types)

	var unknown Command
	assert.ErrorIs(t, f.handler.Handle(ctx, "c1", unknown), ErrUnknownCommand)
}
