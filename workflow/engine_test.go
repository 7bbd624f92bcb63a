package workflow

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"blog-lab/bus"
	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine *Engine
	store  *repositories.PostRepository
	bus    *bus.Bus
	ctx    context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	store := repositories.NewPostRepository(db, log)
	b := bus.New(log, 64)
	return fixture{
		engine: NewEngine(store, b, log),
		store:  store,
		bus:    b,
		ctx:    context.Background(),
	}
}

func createPost(t *testing.T, f fixture, author uuid.UUID, status domain.Status) domain.Post {
	t.Helper()
	post := domain.Post{
		ID:       uuid.New(),
		Title:    "A post",
		Content:  "Some content worth reviewing",
		AuthorID: author,
		Status:   status,
	}
	require.NoError(t, f.store.CreatePost(f.ctx, &post))
	return post
}

func asUser(id uuid.UUID) domain.Identity {
	return domain.Identity{UserID: id, Role: domain.RoleUser}
}

func asAdmin(id uuid.UUID) domain.Identity {
	return domain.Identity{UserID: id, Role: domain.RoleAdmin}
}

func Test_Engine_Submit_DraftToPending(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	author := uuid.New()
	post := createPost(t, f, author, domain.StatusDraft)

	events, cancel := f.bus.Subscribe(bus.TopicWorkflow)
	defer cancel()

	evt, err := f.engine.Submit(f.ctx, post.ID, asUser(author))
	req.NoError(err)
	req.Equal(uint64(1), evt.Seq)
	req.False(evt.Resubmit)

	stored, err := f.store.GetPost(f.ctx, post.ID)
	req.NoError(err)
	req.Equal(domain.StatusPending, stored.Status)

	published := (<-events).(event.PostSubmitted)
	req.Equal(evt, published)
}

func Test_Engine_Submit_RejectsWrongAuthorAndStatus(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	author := uuid.New()

	pending := createPost(t, f, author, domain.StatusPending)
	_, err := f.engine.Submit(f.ctx, pending.ID, asUser(author))
	req.ErrorIs(err, errors.ErrInvalidTransition)

	draft := createPost(t, f, author, domain.StatusDraft)
	_, err = f.engine.Submit(f.ctx, draft.ID, asUser(uuid.New()))
	req.ErrorIs(err, errors.ErrUnauthorized)

	_, err = f.engine.Submit(f.ctx, uuid.New(), asUser(author))
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Engine_Decide_ApprovesAndRejects(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	reviewer := uuid.New()

	approved := createPost(t, f, uuid.New(), domain.StatusPending)
	evt, err := f.engine.Decide(f.ctx, approved.ID, asAdmin(reviewer), domain.DecisionApproved, "")
	req.NoError(err)
	req.Equal(event.KindApproved, evt.EventKind())

	stored, err := f.store.GetPost(f.ctx, approved.ID)
	req.NoError(err)
	req.Equal(domain.StatusApproved, stored.Status)
	req.NotNil(stored.ApprovedBy)
	req.Equal(reviewer, *stored.ApprovedBy)

	rejected := createPost(t, f, uuid.New(), domain.StatusPending)
	evt, err = f.engine.Decide(f.ctx, rejected.ID,
		domain.Identity{UserID: reviewer, Role: domain.RoleL1Approver},
		domain.DecisionRejected, "needs sources")
	req.NoError(err)
	req.Equal(event.KindRejected, evt.EventKind())

	stored, err = f.store.GetPost(f.ctx, rejected.ID)
	req.NoError(err)
	req.Equal(domain.StatusRejected, stored.Status)
	req.Equal("needs sources", stored.RejectReason)
}

func Test_Engine_Decide_Authorization(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	post := createPost(t, f, uuid.New(), domain.StatusPending)

	_, err := f.engine.Decide(f.ctx, post.ID, asUser(uuid.New()), domain.DecisionApproved, "")
	req.ErrorIs(err, errors.ErrUnauthorized)

	_, err = f.engine.Decide(f.ctx, post.ID, asAdmin(uuid.New()), domain.DecisionRejected, "")
	req.ErrorIs(err, errors.ErrInvalidInput, "rejection without reason")

	// No side effects happened.
	stored, err := f.store.GetPost(f.ctx, post.ID)
	req.NoError(err)
	req.Equal(domain.StatusPending, stored.Status)
}

func Test_Engine_Decide_ConcurrentRace_OneWinner(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	post := createPost(t, f, uuid.New(), domain.StatusPending)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, decision := range []domain.Decision{domain.DecisionApproved, domain.DecisionRejected} {
		wg.Add(1)
		go func(d domain.Decision) {
			defer wg.Done()
			_, err := f.engine.Decide(f.ctx, post.ID, asAdmin(uuid.New()), d, "too slow")
			results <- err
		}(decision)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			req.True(
				stderrors.Is(err, errors.ErrStaleState) || stderrors.Is(err, errors.ErrInvalidTransition),
				"loser must see a stale/invalid state, got %v", err)
		}
	}
	req.Equal(1, wins)

	records, err := f.store.ListWorkflowEvents(f.ctx, post.ID)
	req.NoError(err)
	req.Len(records, 1, "exactly one decision event is produced")
}

// slowAppendStore parks the goroutine appending a decision record between
// the append and the engine's publish, giving a concurrent resubmission
// every chance to overtake it.
type slowAppendStore struct {
	repositories.IPostRepository
	stalled chan struct{}
	release chan struct{}
}

func (s *slowAppendStore) AppendWorkflowEvent(ctx context.Context, record repositories.WorkflowRecord) (uint64, error) {
	seq, err := s.IPostRepository.AppendWorkflowEvent(ctx, record)
	if record.Kind == "decided" {
		close(s.stalled)
		<-s.release
	}
	return seq, err
}

type seqRecorder struct {
	mu   sync.Mutex
	seqs []uint64
}

func (r *seqRecorder) Publish(_ bus.Topic, evt event.DomainEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e := evt.(type) {
	case event.PostSubmitted:
		r.seqs = append(r.seqs, e.Seq)
	case event.PostDecided:
		r.seqs = append(r.seqs, e.Seq)
	}
	return 0
}

func Test_Engine_PublishesOnePostsEventsInSequenceOrder(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	store := &slowAppendStore{
		IPostRepository: f.store,
		stalled:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	rec := &seqRecorder{}
	engine := NewEngine(store, rec, slog.Default())

	author := uuid.New()
	post := createPost(t, f, author, domain.StatusDraft)
	_, err := engine.Submit(f.ctx, post.ID, asUser(author))
	req.NoError(err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := engine.Decide(f.ctx, post.ID, asAdmin(uuid.New()), domain.DecisionRejected, "too thin")
		require.NoError(t, err)
	}()

	// Once the rejection has committed and appended its record, race a
	// resubmission against its still-unpublished event.
	<-store.stalled
	go func() {
		defer wg.Done()
		_, err := engine.Resubmit(f.ctx, post.ID, asUser(author))
		require.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	req.Equal([]uint64{1, 2, 3}, rec.seqs,
		"subscribers must observe one post's events in sequence order")
}

func Test_Engine_Resubmit_RejectedBackToPending(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	author := uuid.New()
	post := createPost(t, f, author, domain.StatusDraft)

	_, err := f.engine.Submit(f.ctx, post.ID, asUser(author))
	req.NoError(err)
	_, err = f.engine.Decide(f.ctx, post.ID, asAdmin(uuid.New()), domain.DecisionRejected, "typo city")
	req.NoError(err)

	_, err = f.engine.Resubmit(f.ctx, post.ID, asUser(uuid.New()))
	req.ErrorIs(err, errors.ErrUnauthorized)

	evt, err := f.engine.Resubmit(f.ctx, post.ID, asUser(author))
	req.NoError(err)
	req.True(evt.Resubmit)
	req.Equal(uint64(3), evt.Seq, "sequence keeps growing across the post's lifetime")

	stored, err := f.store.GetPost(f.ctx, post.ID)
	req.NoError(err)
	req.Equal(domain.StatusPending, stored.Status)
	req.Empty(stored.RejectReason, "reason cleared on resubmission")
}
