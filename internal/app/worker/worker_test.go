package worker_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/changhyu/cargoro-sub000/internal/app/worker"
	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/internal/core/services"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	direct   map[string][]domain.Envelope
	roomCast []domain.Envelope
	roomIDs  []string
	all      []domain.Envelope
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{direct: make(map[string][]domain.Envelope)}
}

func (b *recordingBroadcaster) SendToClient(ctx context.Context, clientID string, env domain.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct[clientID] = append(b.direct[clientID], env)
	return nil
}

func (b *recordingBroadcaster) BroadcastAll(ctx context.Context, env domain.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, env)
}

func (b *recordingBroadcaster) BroadcastToRoom(ctx context.Context, roomID string, env domain.Envelope, excludeClientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roomCast = append(b.roomCast, env)
	b.roomIDs = append(b.roomIDs, roomID)
}

type fakeQueue struct {
	acked   []string
	deleted []string
}

func (q *fakeQueue) Publish(ctx context.Context, payload []byte) error { return nil }

func (q *fakeQueue) Subscribe(ctx context.Context, group string, handler func(ctx context.Context, messageID string, payload []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *fakeQueue) Acknowledge(ctx context.Context, group, messageID string) error {
	q.acked = append(q.acked, messageID)
	return nil
}

func (q *fakeQueue) DeleteMessage(ctx context.Context, messageID string) error {
	q.deleted = append(q.deleted, messageID)
	return nil
}

type noopNotificationStore struct{}

func (noopNotificationStore) SaveNotification(ctx context.Context, n *domain.Notification) error {
	return nil
}

type passTxRunner struct{}

func (passTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestWorker(bcast contracts.Broadcaster, queue contracts.PushQueue) contracts.AsyncWorker {
	log := newTestLogger()
	notif := services.NewNotificationService(log, noopNotificationStore{}, passTxRunner{}, bcast)
	return worker.NewPushWorker(log, queue, notif, bcast, "push-workers")
}

func TestProcessPushDirected(t *testing.T) {
	bcast := newRecordingBroadcaster()
	queue := &fakeQueue{}
	w := newTestWorker(bcast, queue)

	raw := []byte(`{"clientId":"driver-1","data":{"kind":"rentalApproved"}}`)
	if err := w.ProcessPush(context.Background(), "1-0", raw); err != nil {
		t.Fatalf("ProcessPush failed: %v", err)
	}

	if len(bcast.direct["driver-1"]) != 1 {
		t.Errorf("directed deliveries = %d, want 1", len(bcast.direct["driver-1"]))
	}
	if len(queue.acked) != 1 || queue.acked[0] != "1-0" {
		t.Errorf("acked = %v, want [1-0]", queue.acked)
	}
	if len(queue.deleted) != 1 {
		t.Errorf("deleted = %v, want one entry", queue.deleted)
	}
}

func TestProcessPushRoom(t *testing.T) {
	bcast := newRecordingBroadcaster()
	queue := &fakeQueue{}
	w := newTestWorker(bcast, queue)

	raw := []byte(`{"roomId":"vehicle:42","event":"locationUpdate","data":{"lat":1}}`)
	if err := w.ProcessPush(context.Background(), "2-0", raw); err != nil {
		t.Fatalf("ProcessPush failed: %v", err)
	}

	if len(bcast.roomCast) != 1 {
		t.Fatalf("room broadcasts = %d, want 1", len(bcast.roomCast))
	}
	if bcast.roomIDs[0] != "vehicle:42" {
		t.Errorf("room = %q, want vehicle:42", bcast.roomIDs[0])
	}
	if bcast.roomCast[0].Type != "locationUpdate" {
		t.Errorf("event = %q, want locationUpdate", bcast.roomCast[0].Type)
	}
}

func TestProcessPushBroadcastDefaultsEvent(t *testing.T) {
	bcast := newRecordingBroadcaster()
	queue := &fakeQueue{}
	w := newTestWorker(bcast, queue)

	raw := []byte(`{"data":{"announcement":"maintenance window"}}`)
	if err := w.ProcessPush(context.Background(), "3-0", raw); err != nil {
		t.Fatalf("ProcessPush failed: %v", err)
	}

	if len(bcast.all) != 1 {
		t.Fatalf("global broadcasts = %d, want 1", len(bcast.all))
	}
	if bcast.all[0].Type != domain.TypeNotification {
		t.Errorf("event = %q, want notification default", bcast.all[0].Type)
	}
}

func TestProcessPushMalformedIsAckedAndSkipped(t *testing.T) {
	bcast := newRecordingBroadcaster()
	queue := &fakeQueue{}
	w := newTestWorker(bcast, queue)

	if err := w.ProcessPush(context.Background(), "4-0", []byte(`{broken`)); err == nil {
		t.Error("expected unmarshal error")
	}
	// A poison entry must still be acknowledged or it would redeliver forever.
	if len(queue.acked) != 1 {
		t.Errorf("acked = %v, want the poison entry", queue.acked)
	}
	if len(bcast.all) != 0 || len(bcast.roomCast) != 0 {
		t.Error("malformed entry was broadcast")
	}
}
