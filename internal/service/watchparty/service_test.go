package watchparty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cinestream/watchparty/internal/hub"
	connInmemory "github.com/cinestream/watchparty/internal/repository/connection/inmemory"
	"github.com/cinestream/watchparty/internal/repository/presence"
	presenceInmemory "github.com/cinestream/watchparty/internal/repository/presence/inmemory"
	"github.com/cinestream/watchparty/internal/repository/room"
	roomInmemory "github.com/cinestream/watchparty/internal/repository/room/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	groups map[string]map[string]bool
	inbox  map[string][]hub.Event
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		groups: make(map[string]map[string]bool),
		inbox:  make(map[string][]hub.Event),
	}
}

func (b *fakeBroadcaster) AddToGroup(group, connID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.groups[group] == nil {
		b.groups[group] = make(map[string]bool)
	}
	b.groups[group][connID] = true
	return nil
}

func (b *fakeBroadcaster) RemoveFromGroup(group, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.groups[group], connID)
}

func (b *fakeBroadcaster) SendToConn(_ context.Context, connID string, e hub.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inbox[connID] = append(b.inbox[connID], e)
	return nil
}

func (b *fakeBroadcaster) SendToGroup(ctx context.Context, group string, e hub.Event) error {
	return b.SendToGroupExcept(ctx, group, "", e)
}

func (b *fakeBroadcaster) SendToGroupExcept(_ context.Context, group, exceptConnID string, e hub.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for connID := range b.groups[group] {
		if connID != exceptConnID {
			b.inbox[connID] = append(b.inbox[connID], e)
		}
	}
	return nil
}

func (b *fakeBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inbox = make(map[string][]hub.Event)
}

func (b *fakeBroadcaster) inGroup(group, connID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.groups[group][connID]
}

func eventsOf[T hub.Event](b *fakeBroadcaster, connID string) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []T
	for _, e := range b.inbox[connID] {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (b *fakeBroadcaster) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, events := range b.inbox {
		n += len(events)
	}
	return n
}

type testEnv struct {
	svc      *service
	rooms    iRoomRepo
	conns    iConnRepo
	presence iPresenceRepo
	bc       *fakeBroadcaster
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	roomRepo := roomInmemory.NewRepo(logger)
	connRepo := connInmemory.NewRepo(logger)
	presenceRepo := presenceInmemory.NewRepo()
	bc := newFakeBroadcaster()

	env := &testEnv{
		rooms:    roomRepo,
		conns:    connRepo,
		presence: presenceRepo,
		bc:       bc,
		clock:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	env.rewire(connRepo, presenceRepo, bc)

	return env
}

// rewire rebuilds the service over the same registry with the given collaborators.
func (e *testEnv) rewire(conns iConnRepo, presenceRepo iPresenceRepo, bc iBroadcaster) {
	e.svc = NewService(e.rooms, conns, presenceRepo, bc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.svc.now = func() time.Time { return e.clock }
}

type hookedPresence struct {
	iPresenceRepo
	beforeAdd func()
}

func (p *hookedPresence) AddParticipant(ctx context.Context, params *presence.AddParticipantParams) error {
	if hook := p.beforeAdd; hook != nil {
		p.beforeAdd = nil
		hook()
	}
	return p.iPresenceRepo.AddParticipant(ctx, params)
}

type hookedBroadcaster struct {
	*fakeBroadcaster
	beforeSend func(connID string, e hub.Event)
}

func (b *hookedBroadcaster) SendToConn(ctx context.Context, connID string, e hub.Event) error {
	if hook := b.beforeSend; hook != nil {
		b.beforeSend = nil
		hook(connID, e)
	}
	return b.fakeBroadcaster.SendToConn(ctx, connID, e)
}

type failingSetRoom struct {
	iConnRepo
}

func (failingSetRoom) SetRoom(string, string) (string, error) {
	return "", errors.New("store unavailable")
}

func (e *testEnv) connect(t *testing.T, connID, userID, username string) {
	t.Helper()
	require.NoError(t, e.svc.Connect(context.Background(), &ConnectParams{
		ConnID:   connID,
		UserID:   userID,
		Username: username,
	}))
}

func (e *testEnv) join(t *testing.T, connID, roomID string) JoinRoomResponse {
	t.Helper()
	resp, err := e.svc.JoinRoom(context.Background(), &JoinRoomParams{ConnID: connID, RoomID: roomID})
	require.NoError(t, err)
	return resp
}

// host, p1 and p2 in r1
func (e *testEnv) seedRoom(t *testing.T) {
	t.Helper()
	e.connect(t, "c-host", "host", "Host")
	e.connect(t, "c-p1", "p1", "Alice")
	e.connect(t, "c-p2", "p2", "Bob")
	e.join(t, "c-host", "r1")
	e.join(t, "c-p1", "r1")
	e.join(t, "c-p2", "r1")
	e.bc.reset()
}

func TestJoinFreshRoomStartsPaused(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "c-host", "host", "Host")

	resp := env.join(t, "c-host", "r1")
	assert.True(t, resp.Created)
	assert.Equal(t, 0.0, resp.Position)
	assert.False(t, resp.State.IsPlaying)
	assert.Equal(t, "host", resp.State.HostID)

	states := eventsOf[RoomStateEvent](env.bc, "c-host")
	require.Len(t, states, 1)
	assert.Equal(t, 0.0, states[0].CurrentTime)
	assert.False(t, states[0].IsPlaying)
	assert.True(t, states[0].IsHost)
	assert.Len(t, states[0].Participants, 1)
	assert.True(t, env.bc.inGroup(GroupName("r1"), "c-host"))
}

func TestJoinBroadcastsToOthers(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "c-host", "host", "Host")
	env.connect(t, "c-p1", "p1", "Alice")
	env.join(t, "c-host", "r1")

	resp := env.join(t, "c-p1", "r1")
	assert.False(t, resp.Created)

	joined := eventsOf[UserJoinedEvent](env.bc, "c-host")
	require.Len(t, joined, 1)
	assert.Equal(t, "Alice", joined[0].Participant.Username)
	assert.False(t, joined[0].Participant.IsHost)
	assert.Equal(t, 2, joined[0].ParticipantsCount)
	assert.Empty(t, eventsOf[UserJoinedEvent](env.bc, "c-p1"))

	states := eventsOf[RoomStateEvent](env.bc, "c-p1")
	require.Len(t, states, 1)
	assert.False(t, states[0].IsHost)
	assert.Equal(t, "host", states[0].HostID)

	count, err := env.presence.CountParticipants(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestJoinSameRoomTwiceOnlyResendsState(t *testing.T) {
	env := newTestEnv(t)
	env.seedRoom(t)

	env.join(t, "c-p1", "r1")

	assert.Len(t, eventsOf[RoomStateEvent](env.bc, "c-p1"), 1)
	assert.Empty(t, eventsOf[UserJoinedEvent](env.bc, "c-host"))
	state, err := env.rooms.Get("r1")
	require.NoError(t, err)
	assert.Len(t, state.Participants, 3)
}

func TestHostUpdateReachesEveryoneButSender(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	resp, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		ConnID:      "c-host",
		RoomID:      "r1",
		CurrentTime: 42.5,
		IsPlaying:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 42.5, resp.State.CurrentTime)
	assert.Equal(t, uint64(1), resp.State.Version)

	for _, connID := range []string{"c-p1", "c-p2"} {
		changes := eventsOf[PlaybackStateChangedEvent](env.bc, connID)
		require.Len(t, changes, 1, connID)
		assert.Equal(t, 42.5, changes[0].CurrentTime)
		assert.True(t, changes[0].IsPlaying)
		assert.Equal(t, uint64(1), changes[0].Version)
		assert.Equal(t, "host", changes[0].UpdatedBy)
	}
	assert.Empty(t, env.bc.inbox["c-host"])
}

func TestNonHostUpdateIsRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		ConnID:      "c-p1",
		RoomID:      "r1",
		CurrentTime: 100,
		IsPlaying:   false,
	})
	assert.ErrorIs(t, err, room.ErrUnauthorized)

	state, err := env.rooms.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.CurrentTime)
	assert.False(t, state.IsPlaying)
	assert.Zero(t, state.Version)
	assert.Zero(t, env.bc.total())
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)
	env.connect(t, "c-stranger", "stranger", "Eve")

	_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-stranger", RoomID: "r1", CurrentTime: 1})
	assert.ErrorIs(t, err, ErrNotInRoom)

	_, err = env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-stranger", RoomID: "nope", CurrentTime: 1})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-host", RoomID: "r1", CurrentTime: -1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-host", RoomID: "bad room", CurrentTime: 1})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, env.bc.total())
}

func TestLateJoinerGetsLivePosition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.connect(t, "c-host", "host", "Host")
	env.connect(t, "c-late", "late", "Late")
	env.join(t, "c-host", "r1")

	_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		ConnID:      "c-host",
		RoomID:      "r1",
		CurrentTime: 10,
		IsPlaying:   true,
	})
	require.NoError(t, err)

	env.clock = env.clock.Add(5 * time.Second)
	resp := env.join(t, "c-late", "r1")
	assert.InDelta(t, 15.0, resp.Position, 1e-9)

	states := eventsOf[RoomStateEvent](env.bc, "c-late")
	require.Len(t, states, 1)
	assert.InDelta(t, 15.0, states[0].CurrentTime, 1e-9)
	assert.True(t, states[0].IsPlaying)
	assert.Equal(t, uint64(1), states[0].Version)
}

func TestLastLeaveRemovesRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-host", RoomID: "r1", CurrentTime: 42.5, IsPlaying: true})
	require.NoError(t, err)

	for _, connID := range []string{"c-p1", "c-p2", "c-host"} {
		require.NoError(t, env.svc.LeaveRoom(ctx, &LeaveRoomParams{ConnID: connID, RoomID: "r1"}))
	}

	_, err = env.rooms.Get("r1")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	count, err := env.presence.CountParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, count)

	resp := env.join(t, "c-p2", "r1")
	assert.True(t, resp.Created)
	assert.Equal(t, 0.0, resp.Position)
	assert.False(t, resp.State.IsPlaying)
	assert.Zero(t, resp.State.Version)
	assert.Equal(t, "p2", resp.State.HostID)
}

func TestLeaveBroadcastsAndHandsOverHost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	require.NoError(t, env.svc.LeaveRoom(ctx, &LeaveRoomParams{ConnID: "c-host", RoomID: "r1"}))
	assert.False(t, env.bc.inGroup(GroupName("r1"), "c-host"))

	for _, connID := range []string{"c-p1", "c-p2"} {
		left := eventsOf[UserLeftEvent](env.bc, connID)
		require.Len(t, left, 1)
		assert.Equal(t, "host", left[0].Participant.UserID)
		assert.Equal(t, 2, left[0].ParticipantsCount)

		changed := eventsOf[HostChangedEvent](env.bc, connID)
		require.Len(t, changed, 1)
		assert.Equal(t, "p1", changed[0].HostID)
		assert.Equal(t, "Alice", changed[0].Username)
	}
	assert.Empty(t, env.bc.inbox["c-host"])

	_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-p1", RoomID: "r1", CurrentTime: 3})
	assert.NoError(t, err)
}

func TestLeaveRoomNotJoinedIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)
	env.connect(t, "c-stranger", "stranger", "Eve")

	require.NoError(t, env.svc.LeaveRoom(ctx, &LeaveRoomParams{ConnID: "c-stranger", RoomID: "r1"}))
	require.NoError(t, env.svc.LeaveRoom(ctx, &LeaveRoomParams{ConnID: "c-stranger", RoomID: "missing"}))
	assert.Zero(t, env.bc.total())
}

func TestJoinAnotherRoomLeavesPrevious(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	resp := env.join(t, "c-p1", "r2")
	assert.Equal(t, "r1", resp.PreviousRoom)
	assert.True(t, resp.Created)

	conn, err := env.conns.Get("c-p1")
	require.NoError(t, err)
	assert.Equal(t, "r2", conn.RoomID)
	assert.False(t, env.bc.inGroup(GroupName("r1"), "c-p1"))
	assert.True(t, env.bc.inGroup(GroupName("r2"), "c-p1"))

	left := eventsOf[UserLeftEvent](env.bc, "c-host")
	require.Len(t, left, 1)
	assert.Equal(t, "c-p1", left[0].Participant.ConnID)

	count, err := env.presence.CountParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	event, err := env.svc.SendMessage(ctx, &SendMessageParams{ConnID: "c-p1", RoomID: "r1", Message: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", event.Message)
	assert.Equal(t, env.clock, event.CreatedAt)

	for _, connID := range []string{"c-host", "c-p1", "c-p2"} {
		msgs := eventsOf[ReceiveMessageEvent](env.bc, connID)
		require.Len(t, msgs, 1, connID)
		assert.Equal(t, ReceiveMessageEvent{
			UserID:    "p1",
			Username:  "Alice",
			Message:   "hello",
			CreatedAt: env.clock,
		}, msgs[0])
	}
}

func TestSendMessageErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)
	env.connect(t, "c-stranger", "stranger", "Eve")

	_, err := env.svc.SendMessage(ctx, &SendMessageParams{ConnID: "c-p1", RoomID: "r1", Message: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.SendMessage(ctx, &SendMessageParams{ConnID: "c-p1", RoomID: "r1", Message: strings.Repeat("a", MaxMessageLength+1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.SendMessage(ctx, &SendMessageParams{ConnID: "c-p1", RoomID: "r1", Message: strings.Repeat("é", MaxMessageLength)})
	assert.NoError(t, err)
	env.bc.reset()

	_, err = env.svc.SendMessage(ctx, &SendMessageParams{ConnID: "c-stranger", RoomID: "r1", Message: "hi"})
	assert.ErrorIs(t, err, ErrNotInRoom)

	_, err = env.svc.SendMessage(ctx, &SendMessageParams{ConnID: "c-stranger", RoomID: "missing", Message: "hi"})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	assert.Zero(t, env.bc.total())
}

func TestCloseRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	err := env.svc.CloseRoom(ctx, &CloseRoomParams{ConnID: "c-p1", RoomID: "r1"})
	assert.ErrorIs(t, err, room.ErrUnauthorized)
	assert.Zero(t, env.bc.total())

	require.NoError(t, env.svc.CloseRoom(ctx, &CloseRoomParams{ConnID: "c-host", RoomID: "r1"}))

	for _, connID := range []string{"c-host", "c-p1", "c-p2"} {
		closed := eventsOf[RoomClosedEvent](env.bc, connID)
		require.Len(t, closed, 1)
		assert.Equal(t, "host", closed[0].ClosedBy)

		conn, err := env.conns.Get(connID)
		require.NoError(t, err)
		assert.Empty(t, conn.RoomID)
		assert.False(t, env.bc.inGroup(GroupName("r1"), connID))
	}

	_, err = env.rooms.Get("r1")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	participants, err := env.presence.GetParticipants(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, participants)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	require.NoError(t, env.svc.Disconnect(ctx, "c-p2"))
	_, err := env.conns.Get("c-p2")
	assert.Error(t, err)

	left := eventsOf[UserLeftEvent](env.bc, "c-host")
	require.Len(t, left, 1)
	assert.Equal(t, "Bob", left[0].Participant.Username)

	require.NoError(t, env.svc.Disconnect(ctx, "c-p2"))
	require.NoError(t, env.svc.Disconnect(ctx, "never-connected"))
}

func TestAnonymousParticipants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.connect(t, "c-anon1", "", "anonymous")
	env.connect(t, "c-anon2", "", "anonymous")

	resp := env.join(t, "c-anon1", "r1")
	assert.Equal(t, "c-anon1", resp.State.HostID)
	env.join(t, "c-anon2", "r1")

	_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-anon2", RoomID: "r1", CurrentTime: 5})
	assert.ErrorIs(t, err, room.ErrUnauthorized)

	_, err = env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{ConnID: "c-anon1", RoomID: "r1", CurrentTime: 5})
	assert.NoError(t, err)
}

func TestGetRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)

	info, err := env.svc.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, info.ParticipantsCount)
	assert.Equal(t, "host", info.State.HostID)
	require.Len(t, info.Participants, 3)
	assert.Equal(t, "c-host", info.Participants[0].ConnID)

	_, err = env.svc.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = env.svc.GetRoom(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentUpdatesAcrossRooms(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	const rooms = 8
	const updates = 50
	for i := 0; i < rooms; i++ {
		connID := fmt.Sprintf("c-%d", i)
		env.connect(t, connID, fmt.Sprintf("u-%d", i), "user")
		env.join(t, connID, fmt.Sprintf("room-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 1; j <= updates; j++ {
				_, err := env.svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
					ConnID:      fmt.Sprintf("c-%d", i),
					RoomID:      fmt.Sprintf("room-%d", i),
					CurrentTime: float64(i*1000 + j),
					IsPlaying:   j%2 == 0,
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < rooms; i++ {
		state, err := env.rooms.Get(fmt.Sprintf("room-%d", i))
		require.NoError(t, err)
		assert.Equal(t, float64(i*1000+updates), state.CurrentTime)
		assert.True(t, state.IsPlaying)
		assert.Equal(t, uint64(updates), state.Version)
	}
}

func presenceConnIDs(t *testing.T, env *testEnv, roomID string) []string {
	t.Helper()
	participants, err := env.presence.GetParticipants(context.Background(), roomID)
	require.NoError(t, err)

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ConnID)
	}
	return ids
}

func registryConnIDs(t *testing.T, env *testEnv, roomID string) []string {
	t.Helper()
	state, err := env.rooms.Get(roomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		return []string{}
	}
	require.NoError(t, err)

	ids := make([]string, 0, len(state.Participants))
	for _, p := range state.Participants {
		ids = append(ids, p.ConnID)
	}
	return ids
}

func TestCloseBeforeJoinerEntersRegistry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)
	env.connect(t, "c-x", "x", "Xavier")

	hooked := &hookedPresence{iPresenceRepo: env.presence}
	hooked.beforeAdd = func() {
		require.NoError(t, env.svc.CloseRoom(ctx, &CloseRoomParams{ConnID: "c-host", RoomID: "r1"}))
	}
	env.rewire(env.conns, hooked, env.bc)

	resp := env.join(t, "c-x", "r1")
	assert.True(t, resp.Created, "the closed room is recreated by the joiner")
	assert.Equal(t, "x", resp.State.HostID)

	conn, err := env.conns.Get("c-x")
	require.NoError(t, err)
	assert.Equal(t, "r1", conn.RoomID)
	assert.Equal(t, []string{"c-x"}, registryConnIDs(t, env, "r1"))
	assert.Equal(t, []string{"c-x"}, presenceConnIDs(t, env, "r1"))

	require.NoError(t, env.svc.Disconnect(ctx, "c-x"))
	assert.Empty(t, presenceConnIDs(t, env, "r1"))
	assert.Empty(t, registryConnIDs(t, env, "r1"))
}

func TestCloseAfterJoinerEntersRegistry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedRoom(t)
	env.connect(t, "c-x", "x", "Xavier")

	hooked := &hookedBroadcaster{fakeBroadcaster: env.bc}
	hooked.beforeSend = func(connID string, e hub.Event) {
		if _, ok := e.(RoomStateEvent); ok && connID == "c-x" {
			require.NoError(t, env.svc.CloseRoom(ctx, &CloseRoomParams{ConnID: "c-host", RoomID: "r1"}))
		}
	}
	env.rewire(env.conns, env.presence, hooked)

	env.join(t, "c-x", "r1")

	conn, err := env.conns.Get("c-x")
	require.NoError(t, err)
	assert.Empty(t, conn.RoomID)
	assert.False(t, env.bc.inGroup(GroupName("r1"), "c-x"))
	assert.Len(t, eventsOf[RoomClosedEvent](env.bc, "c-x"), 1)
	assert.Empty(t, registryConnIDs(t, env, "r1"))
	assert.Empty(t, presenceConnIDs(t, env, "r1"))

	// a new room under the same id starts clean
	env.connect(t, "c-y", "y", "Yann")
	env.join(t, "c-y", "r1")
	assert.Equal(t, []string{"c-y"}, presenceConnIDs(t, env, "r1"))
}

func TestJoinUndoneWhenConnectionRoomCannotBeSet(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "c-x", "x", "Xavier")
	env.rewire(failingSetRoom{iConnRepo: env.conns}, env.presence, env.bc)

	_, err := env.svc.JoinRoom(context.Background(), &JoinRoomParams{ConnID: "c-x", RoomID: "r1"})
	assert.Error(t, err)

	assert.False(t, env.bc.inGroup(GroupName("r1"), "c-x"))
	assert.Empty(t, registryConnIDs(t, env, "r1"))
	assert.Empty(t, presenceConnIDs(t, env, "r1"))
	assert.Zero(t, env.bc.total())
}

func TestLeaveClearsPresenceWhenRegistryForgotRoom(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.connect(t, "c-x", "x", "Xavier")

	_, err := env.conns.SetRoom("c-x", "r1")
	require.NoError(t, err)
	require.NoError(t, env.presence.AddParticipant(ctx, &presence.AddParticipantParams{
		RoomID:      "r1",
		Participant: presence.Participant{ConnID: "c-x", UserID: "x"},
	}))

	require.NoError(t, env.svc.Disconnect(ctx, "c-x"))
	assert.Empty(t, presenceConnIDs(t, env, "r1"))
}
