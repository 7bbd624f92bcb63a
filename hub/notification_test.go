package hub

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *repositories.PostRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewPostRepository(db, slog.Default())
}

func drain(t *testing.T, sess *Session, n int) []event.DomainEvent {
	t.Helper()
	out := make([]event.DomainEvent, 0, n)
	for len(out) < n {
		select {
		case evt := <-sess.Events():
			out = append(out, evt)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func Test_NotificationHub_Connect_RequiresApproverRole(t *testing.T) {
	req := require.New(t)
	h := NewNotificationHub(slog.Default(), openTestStore(t), 16)

	_, err := h.Connect(context.Background(), uuid.New(), domain.RoleUser)
	req.ErrorIs(err, errors.ErrUnauthorized)
	req.Zero(h.ConnectionCount())
}

func Test_NotificationHub_Connect_DeliversPendingSnapshotFirst(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	pending := domain.Post{ID: uuid.New(), Title: "Waiting", AuthorID: uuid.New(), Status: domain.StatusPending}
	req.NoError(store.CreatePost(ctx, &pending))
	draft := domain.Post{ID: uuid.New(), Title: "Not yet", AuthorID: uuid.New(), Status: domain.StatusDraft}
	req.NoError(store.CreatePost(ctx, &draft))

	h := NewNotificationHub(slog.Default(), store, 16)
	sess, err := h.Connect(ctx, uuid.New(), domain.RoleAdmin)
	req.NoError(err)

	first := drain(t, sess, 1)[0]
	snapshot, ok := first.(event.PendingSnapshot)
	req.True(ok, "snapshot precedes any live event, got %T", first)
	req.Len(snapshot.Entries, 1)
	req.Equal(pending.ID, snapshot.Entries[0].Post)
	req.Equal("Waiting", snapshot.Entries[0].Title)
}

func Test_NotificationHub_Broadcast_SlowConsumerIsEvictedAlone(t *testing.T) {
	req := require.New(t)
	h := NewNotificationHub(slog.Default(), openTestStore(t), 2)
	ctx := context.Background()

	fast, err := h.Connect(ctx, uuid.New(), domain.RoleAdmin)
	req.NoError(err)
	slow, err := h.Connect(ctx, uuid.New(), domain.RoleL1Approver)
	req.NoError(err)
	req.Equal(2, h.ConnectionCount())

	// Both start with the snapshot queued; only the fast one drains.
	drain(t, fast, 1)

	submissions := make([]event.PostSubmitted, 4)
	for i := range submissions {
		submissions[i] = event.PostSubmitted{Post: uuid.New(), Seq: 1}
		h.Broadcast(submissions[i])
		drain(t, fast, 1)
	}

	req.Equal(1, h.ConnectionCount(), "slow consumer is gone")
	select {
	case <-slow.Done():
	default:
		t.Fatal("evicted session must be closed")
	}

	// The survivor keeps receiving.
	h.Broadcast(event.PostSubmitted{Post: uuid.New(), Seq: 1})
	drain(t, fast, 1)
}

func Test_NotificationHub_Broadcast_PreservesOrderPerConnection(t *testing.T) {
	req := require.New(t)
	h := NewNotificationHub(slog.Default(), openTestStore(t), 32)

	sess, err := h.Connect(context.Background(), uuid.New(), domain.RoleAdmin)
	req.NoError(err)
	drain(t, sess, 1) // snapshot

	post := uuid.New()
	for seq := uint64(1); seq <= 5; seq++ {
		h.Broadcast(event.PostSubmitted{Post: post, Seq: seq})
	}

	for i, evt := range drain(t, sess, 5) {
		req.Equal(uint64(i+1), evt.(event.PostSubmitted).Seq)
	}
}

func Test_NotificationHub_Disconnect_Idempotent(t *testing.T) {
	req := require.New(t)
	h := NewNotificationHub(slog.Default(), openTestStore(t), 16)

	sess, err := h.Connect(context.Background(), uuid.New(), domain.RoleAdmin)
	req.NoError(err)

	h.Disconnect(sess.ID)
	h.Disconnect(sess.ID)
	h.Disconnect(uuid.New())
	req.Zero(h.ConnectionCount())
}

func Test_NotificationHub_EvictIdle(t *testing.T) {
	req := require.New(t)
	h := NewNotificationHub(slog.Default(), openTestStore(t), 16)
	ctx := context.Background()

	stale, err := h.Connect(ctx, uuid.New(), domain.RoleAdmin)
	req.NoError(err)
	stale.lastDelivery.Store(time.Now().Add(-time.Hour).UnixNano())

	fresh, err := h.Connect(ctx, uuid.New(), domain.RoleAdmin)
	req.NoError(err)

	evicted := h.EvictIdle(time.Minute)
	req.Equal([]uuid.UUID{stale.ID}, evicted)
	req.Equal(1, h.ConnectionCount())

	select {
	case <-fresh.Done():
		t.Fatal("fresh session must survive the idle sweep")
	default:
	}
}

func Test_NotificationHub_Shutdown(t *testing.T) {
	req := require.New(t)
	h := NewNotificationHub(slog.Default(), openTestStore(t), 16)
	ctx := context.Background()

	sess, err := h.Connect(ctx, uuid.New(), domain.RoleAdmin)
	req.NoError(err)

	h.Shutdown(100 * time.Millisecond)

	events := drain(t, sess, 2)
	req.Equal(event.KindSnapshot, events[0].EventKind())
	req.Equal(event.KindServerClosing, events[1].EventKind())

	_, err = h.Connect(ctx, uuid.New(), domain.RoleAdmin)
	req.ErrorIs(err, errors.ErrHubClosed)
}
