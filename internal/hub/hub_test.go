package hub_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/internal/hub"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// fakeClient records everything sent to it and can be told to fail.
type fakeClient struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	fail   error
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id}
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) lastEnvelope(t *testing.T) domain.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("no envelopes sent to client")
	}
	var env domain.Envelope
	if err := json.Unmarshal(c.sent[len(c.sent)-1], &env); err != nil {
		t.Fatalf("sent data is not an envelope: %v", err)
	}
	return env
}

func newTestHub() *hub.Hub {
	return hub.New(newTestLogger())
}

// --- Registry and attach/drop ---

func TestAttachAndDrop(t *testing.T) {
	h := newTestHub()
	c := newFakeClient("client-1")

	h.Attach(c)
	if _, ok := h.Registry().Lookup("client-1"); !ok {
		t.Fatal("client not found after attach")
	}
	if h.Registry().Len() != 1 {
		t.Errorf("expected registry length 1, got %d", h.Registry().Len())
	}

	h.Drop("client-1")
	if _, ok := h.Registry().Lookup("client-1"); ok {
		t.Error("client still registered after drop")
	}
	if !c.isClosed() {
		t.Error("client not closed by drop")
	}

	// Dropping again is a no-op.
	h.Drop("client-1")
}

func TestAttachReplacesStaleConnection(t *testing.T) {
	h := newTestHub()
	old := newFakeClient("client-1")
	fresh := newFakeClient("client-1")

	h.Attach(old)
	h.Attach(fresh)

	if !old.isClosed() {
		t.Error("previous connection not force-closed on replacement")
	}
	if fresh.isClosed() {
		t.Error("replacement connection should stay open")
	}
	got, _ := h.Registry().Lookup("client-1")
	if got != fresh {
		t.Error("registry does not hold the replacement connection")
	}
	if h.Registry().Len() != 1 {
		t.Errorf("expected exactly one registration, got %d", h.Registry().Len())
	}
}

func TestDropClientIdentityCheck(t *testing.T) {
	h := newTestHub()
	old := newFakeClient("client-1")
	fresh := newFakeClient("client-1")

	h.Attach(old)
	h.Rooms().Join("client-1", "room-a")
	h.Attach(fresh)

	// The replaced connection's teardown must not strip state now owned by
	// its successor.
	h.DropClient(old)

	if _, ok := h.Registry().Lookup("client-1"); !ok {
		t.Fatal("successor was unregistered by the stale connection's teardown")
	}
	members := h.Rooms().Members("room-a")
	if len(members) != 1 || members[0] != "client-1" {
		t.Errorf("room membership lost on stale teardown: %v", members)
	}

	// The successor's own teardown does clean up.
	h.DropClient(fresh)
	if _, ok := h.Registry().Lookup("client-1"); ok {
		t.Error("successor still registered after its own teardown")
	}
	if len(h.Rooms().Members("room-a")) != 0 {
		t.Error("room membership survived the successor's teardown")
	}
}

func TestDropClientClearsJoinThatRacedEarlierTeardown(t *testing.T) {
	h := newTestHub()
	c := newFakeClient("c1")
	h.Attach(c)

	// A broadcast-failure teardown completes while the connection's own
	// read goroutine is still mid-dispatch on a joinRoom: the Join lands
	// after LeaveAll, then the gateway runs its final teardown.
	h.DropClient(c)
	h.Rooms().Join("c1", "wo-42")
	h.DropClient(c)

	if got := h.Rooms().Members("wo-42"); len(got) != 0 {
		t.Errorf("unregistered c1 still a member of wo-42: %v", got)
	}
	if got := h.Rooms().RoomIDs(); len(got) != 0 {
		t.Errorf("room survived with no registered members: %v", got)
	}
}

// --- Room membership ---

func TestJoinLeaveIdempotent(t *testing.T) {
	h := newTestHub()
	rooms := h.Rooms()

	rooms.Join("c1", "room-a")
	rooms.Join("c1", "room-a")
	if got := rooms.Members("room-a"); len(got) != 1 {
		t.Errorf("double join produced %d members, want 1", len(got))
	}

	rooms.Leave("c1", "room-a")
	rooms.Leave("c1", "room-a")
	rooms.Leave("never-joined", "room-a")
	if got := rooms.Members("room-a"); len(got) != 0 {
		t.Errorf("expected empty room after leaves, got %v", got)
	}
}

func TestMembershipSymmetry(t *testing.T) {
	h := newTestHub()
	rooms := h.Rooms()

	rooms.Join("c1", "room-a")
	rooms.Join("c1", "room-b")
	rooms.Join("c2", "room-a")

	joined := rooms.RoomsOf("c1")
	sort.Strings(joined)
	if len(joined) != 2 || joined[0] != "room-a" || joined[1] != "room-b" {
		t.Fatalf("RoomsOf(c1) = %v, want [room-a room-b]", joined)
	}
	for _, roomID := range joined {
		found := false
		for _, m := range rooms.Members(roomID) {
			if m == "c1" {
				found = true
			}
		}
		if !found {
			t.Errorf("c1 joined %s but is not in its member set", roomID)
		}
	}

	rooms.Leave("c1", "room-a")
	for _, m := range rooms.Members("room-a") {
		if m == "c1" {
			t.Error("c1 still a member of room-a after leave")
		}
	}
	for _, r := range rooms.RoomsOf("c1") {
		if r == "room-a" {
			t.Error("room-a still in c1's joined set after leave")
		}
	}
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	h := newTestHub()
	rooms := h.Rooms()

	rooms.Join("c1", "room-a")
	rooms.Join("c2", "room-a")
	rooms.Leave("c1", "room-a")

	ids := rooms.RoomIDs()
	if len(ids) != 1 || ids[0] != "room-a" {
		t.Fatalf("room should survive while members remain, got %v", ids)
	}

	rooms.Leave("c2", "room-a")
	if got := rooms.RoomIDs(); len(got) != 0 {
		t.Errorf("room not deleted after last member left: %v", got)
	}
}

func TestLeaveAllCleansEverything(t *testing.T) {
	h := newTestHub()
	rooms := h.Rooms()

	rooms.Join("c1", "room-a")
	rooms.Join("c1", "room-b")
	rooms.Join("c2", "room-b")

	left := rooms.LeaveAll("c1")
	sort.Strings(left)
	if len(left) != 2 || left[0] != "room-a" || left[1] != "room-b" {
		t.Fatalf("LeaveAll returned %v, want [room-a room-b]", left)
	}

	if got := rooms.RoomsOf("c1"); len(got) != 0 {
		t.Errorf("c1 still has joined rooms: %v", got)
	}
	if got := rooms.RoomIDs(); len(got) != 1 || got[0] != "room-b" {
		t.Errorf("expected only room-b to survive, got %v", got)
	}
	if got := rooms.Members("room-b"); len(got) != 1 || got[0] != "c2" {
		t.Errorf("room-b members = %v, want [c2]", got)
	}

	// LeaveAll on an unknown client is a no-op.
	if got := rooms.LeaveAll("ghost"); len(got) != 0 {
		t.Errorf("LeaveAll(ghost) = %v, want empty", got)
	}
}

func TestSoleMemberDisconnectLeavesNoRoom(t *testing.T) {
	h := newTestHub()
	c := newFakeClient("c1")
	h.Attach(c)
	h.Rooms().Join("c1", "room-solo")

	h.Drop("c1")

	if got := h.Rooms().RoomIDs(); len(got) != 0 {
		t.Errorf("rooms survived sole member disconnect: %v", got)
	}
}

// --- Broadcaster ---

func mustEnvelope(t *testing.T, typ string, payload any) domain.Envelope {
	t.Helper()
	env, err := domain.NewEnvelope(typ, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	return env
}

func TestSendToClient(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	c := newFakeClient("c1")
	h.Attach(c)

	env := mustEnvelope(t, "pong", domain.PongReply{})
	if err := b.SendToClient(context.Background(), "c1", env); err != nil {
		t.Fatalf("SendToClient failed: %v", err)
	}
	if got := c.lastEnvelope(t); got.Type != "pong" {
		t.Errorf("delivered envelope type = %q, want pong", got.Type)
	}
}

func TestSendToUnknownClient(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)

	err := b.SendToClient(context.Background(), "nobody", mustEnvelope(t, "pong", domain.PongReply{}))
	if !errors.Is(err, domain.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestSendFailureDropsClient(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	c := newFakeClient("c1")
	c.fail = domain.ErrSendBufferFull
	h.Attach(c)
	h.Rooms().Join("c1", "room-a")

	err := b.SendToClient(context.Background(), "c1", mustEnvelope(t, "pong", domain.PongReply{}))
	if err == nil {
		t.Fatal("expected send error")
	}
	if _, ok := h.Registry().Lookup("c1"); ok {
		t.Error("failing client still registered")
	}
	if len(h.Rooms().Members("room-a")) != 0 {
		t.Error("failing client's room membership survived teardown")
	}
	if !c.isClosed() {
		t.Error("failing client not closed")
	}
}

func TestBroadcastToRoomExcludesSender(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	sender := newFakeClient("sender")
	peer := newFakeClient("peer")
	outsider := newFakeClient("outsider")
	h.Attach(sender)
	h.Attach(peer)
	h.Attach(outsider)
	h.Rooms().Join("sender", "room-a")
	h.Rooms().Join("peer", "room-a")

	b.BroadcastToRoom(context.Background(), "room-a",
		mustEnvelope(t, "userTyping", domain.TypingEvent{RoomID: "room-a", UserID: "sender", IsTyping: true}),
		"sender")

	if sender.sentCount() != 0 {
		t.Error("excluded sender received the broadcast")
	}
	if peer.sentCount() != 1 {
		t.Errorf("peer received %d envelopes, want 1", peer.sentCount())
	}
	if outsider.sentCount() != 0 {
		t.Error("non-member received a room broadcast")
	}
}

func TestBroadcastToRoomIncludesAllWhenNoExclusion(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	a := newFakeClient("a")
	c := newFakeClient("c")
	h.Attach(a)
	h.Attach(c)
	h.Rooms().Join("a", "room-x")
	h.Rooms().Join("c", "room-x")

	b.BroadcastToRoom(context.Background(), "room-x", mustEnvelope(t, "newMessage", domain.ChatMessage{}), "")

	if a.sentCount() != 1 || c.sentCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", a.sentCount(), c.sentCount())
	}
}

func TestBroadcastToUnknownRoomIsNoOp(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	c := newFakeClient("c1")
	h.Attach(c)

	b.BroadcastToRoom(context.Background(), "no-such-room", mustEnvelope(t, "newMessage", domain.ChatMessage{}), "")
	if c.sentCount() != 0 {
		t.Error("client received broadcast for a room it never joined")
	}
}

func TestBroadcastAll(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	clients := []*fakeClient{newFakeClient("a"), newFakeClient("b"), newFakeClient("c")}
	for _, c := range clients {
		h.Attach(c)
	}

	b.BroadcastAll(context.Background(), mustEnvelope(t, "heartbeat", domain.HeartbeatTick{}))

	for _, c := range clients {
		if c.sentCount() != 1 {
			t.Errorf("client %s received %d envelopes, want 1", c.ID(), c.sentCount())
		}
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	h := newTestHub()
	b := hub.NewBroadcaster(newTestLogger(), h)
	healthy := newFakeClient("healthy")
	dead := newFakeClient("dead")
	dead.fail = domain.ErrClientClosed
	h.Attach(healthy)
	h.Attach(dead)
	h.Rooms().Join("healthy", "room-a")
	h.Rooms().Join("dead", "room-a")

	b.BroadcastToRoom(context.Background(), "room-a", mustEnvelope(t, "newMessage", domain.ChatMessage{}), "")

	if healthy.sentCount() != 1 {
		t.Errorf("healthy member received %d envelopes, want 1", healthy.sentCount())
	}
	if _, ok := h.Registry().Lookup("dead"); ok {
		t.Error("dead member still registered after failed delivery")
	}
	if _, ok := h.Registry().Lookup("healthy"); !ok {
		t.Error("healthy member was torn down by a peer's failure")
	}
	if len(h.Rooms().Members("room-a")) != 1 {
		t.Errorf("room-a members = %v, want just healthy", h.Rooms().Members("room-a"))
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	h := newTestHub()
	rooms := h.Rooms()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "c" + string(rune('a'+i%10))
			rooms.Join(id, "shared")
			rooms.Leave(id, "shared")
			rooms.Join(id, "shared")
		}(i)
	}
	wg.Wait()

	members := rooms.Members("shared")
	if len(members) != 10 {
		t.Errorf("expected 10 members after concurrent churn, got %d", len(members))
	}
	for _, m := range members {
		found := false
		for _, r := range rooms.RoomsOf(m) {
			if r == "shared" {
				found = true
			}
		}
		if !found {
			t.Errorf("symmetry broken for %s after concurrent churn", m)
		}
	}
}
