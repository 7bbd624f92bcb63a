package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"blog-lab/bus"
	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/google/uuid"
)

const maxCommentLength = 4000

// Moderator screens a comment before it enters a room.
type Moderator interface {
	Review(text string) (clean string, lang string, flagged bool)
}

// Publisher is the slice of the event bus the registry needs.
type Publisher interface {
	Publish(topic bus.Topic, evt event.DomainEvent) int
}

// room is one post's live conversation. Sequence assignment, replay-ring
// append and member broadcast all happen under the room mutex, so every
// member observes comments in the exact same order and a joiner's replay
// never overlaps its live feed.
type room struct {
	post uuid.UUID

	mu         sync.Mutex
	seq        uint64
	members    map[uuid.UUID]*Session
	replay     []event.CommentPosted
	emptySince time.Time
}

// RoomRegistry owns the per-post comment rooms. Rooms are created lazily
// on first join and swept once they have been empty past a grace period.
type RoomRegistry struct {
	mu         sync.RWMutex
	log        *slog.Logger
	comments   repositories.ICommentRepository
	bus        Publisher
	moderator  Moderator
	bufferSize int
	replaySize int
	rooms      map[uuid.UUID]*room
	closed     bool
}

func NewRoomRegistry(log *slog.Logger, comments repositories.ICommentRepository, publisher Publisher, moderator Moderator, bufferSize, replaySize int) *RoomRegistry {
	return &RoomRegistry{
		log:        log,
		comments:   comments,
		bus:        publisher,
		moderator:  moderator,
		bufferSize: bufferSize,
		replaySize: replaySize,
		rooms:      make(map[uuid.UUID]*room),
	}
}

// Join adds a member to the post's room, creating it on first use. The
// replay of the last comments is enqueued on the new session before it is
// registered for live delivery, so the member sees a seamless, gap-free
// sequence. Everyone in the room, the joiner included, gets MemberJoined.
func (r *RoomRegistry) Join(ctx context.Context, postID, userID uuid.UUID) (*Session, error) {
	rm, err := r.obtain(ctx, postID)
	if err != nil {
		return nil, err
	}

	sess := NewSession(userID, domain.RoleUser, r.bufferSize)

	rm.mu.Lock()
	for _, past := range rm.replay {
		if err := sess.Consume(past); err != nil {
			rm.mu.Unlock()
			return nil, fmt.Errorf("replay window larger than session buffer: %w", err)
		}
	}
	rm.members[sess.ID] = sess
	rm.emptySince = time.Time{}
	joined := event.MemberJoined{Post: postID, Member: userID, At: time.Now().UTC()}
	dead := rm.broadcastLocked(joined)
	members := len(rm.members)
	rm.mu.Unlock()

	r.evict(rm, dead)
	r.log.Info("Member joined comment room",
		"post", postID.String(),
		"connection", sess.ID.String(),
		"members", members)
	return sess, nil
}

// Post assigns the next room sequence number to a validated, moderated
// comment, appends it to the replay window, broadcasts it to every member
// (the sender included) and hands it to the bus for persistence.
func (r *RoomRegistry) Post(ctx context.Context, postID, authorID uuid.UUID, content string) (event.CommentPosted, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return event.CommentPosted{}, fmt.Errorf("%w: empty comment", errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return event.CommentPosted{}, fmt.Errorf("%w: comment exceeds %d characters", errors.ErrInvalidInput, maxCommentLength)
	}

	clean, lang, flagged := r.moderator.Review(content)
	if flagged {
		r.log.Info("Comment censored", "post", postID.String(), "author", authorID.String())
	}

	rm, err := r.obtain(ctx, postID)
	if err != nil {
		return event.CommentPosted{}, err
	}

	rm.mu.Lock()
	rm.seq++
	evt := event.CommentPosted{
		Post:    postID,
		Comment: uuid.New(),
		Author:  authorID,
		Content: clean,
		Lang:    lang,
		Seq:     rm.seq,
		At:      time.Now().UTC(),
	}
	rm.replay = append(rm.replay, evt)
	if len(rm.replay) > r.replaySize {
		rm.replay = rm.replay[len(rm.replay)-r.replaySize:]
	}
	dead := rm.broadcastLocked(evt)
	rm.mu.Unlock()

	r.evict(rm, dead)
	if dropped := r.bus.Publish(bus.TopicComments, evt); dropped > 0 {
		r.log.Warn("Degraded delivery of comment event",
			"post", postID.String(),
			"dropped", dropped)
	}
	return evt, nil
}

// Leave removes the connection from the room. It is idempotent; leaving a
// room the connection is not in is a no-op. The last leaver stamps the
// room for the empty-room sweep instead of tearing it down, so members
// flapping around the grace period keep their replay window.
func (r *RoomRegistry) Leave(postID, connID uuid.UUID) {
	r.mu.RLock()
	rm, ok := r.rooms[postID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	sess, ok := rm.members[connID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		rm.emptySince = time.Now()
	}
	left := event.MemberLeft{Post: postID, Member: sess.UserID, At: time.Now().UTC()}
	dead := rm.broadcastLocked(left)
	members := len(rm.members)
	rm.mu.Unlock()

	sess.Close()
	r.evict(rm, dead)
	r.log.Info("Member left comment room",
		"post", postID.String(),
		"connection", connID.String(),
		"members", members)
}

// Disconnect removes the connection from every room it is in. Used by the
// transport layer when a socket dies without a clean leave.
func (r *RoomRegistry) Disconnect(connID uuid.UUID) {
	r.mu.RLock()
	posts := make([]uuid.UUID, 0, len(r.rooms))
	for post, rm := range r.rooms {
		rm.mu.Lock()
		_, in := rm.members[connID]
		rm.mu.Unlock()
		if in {
			posts = append(posts, post)
		}
	}
	r.mu.RUnlock()

	for _, post := range posts {
		r.Leave(post, connID)
	}
}

// Broadcast fans an out-of-band event (heartbeat, shutdown notice) to
// every member of every room.
func (r *RoomRegistry) Broadcast(evt event.DomainEvent) {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		dead := rm.broadcastLocked(evt)
		rm.mu.Unlock()
		r.evict(rm, dead)
	}
}

// EvictIdle disconnects room members that have not accepted a delivery
// within timeout.
func (r *RoomRegistry) EvictIdle(timeout time.Duration) int {
	cutoff := time.Now().Add(-timeout)
	evicted := 0

	r.mu.RLock()
	rooms := make(map[uuid.UUID]*room, len(r.rooms))
	for post, rm := range r.rooms {
		rooms[post] = rm
	}
	r.mu.RUnlock()

	for post, rm := range rooms {
		rm.mu.Lock()
		var idle []uuid.UUID
		for id, sess := range rm.members {
			if sess.LastDelivery().Before(cutoff) {
				idle = append(idle, id)
			}
		}
		rm.mu.Unlock()
		for _, id := range idle {
			r.log.Warn("Evicting idle room member", "post", post.String(), "connection", id.String())
			r.Leave(post, id)
			evicted++
		}
	}
	return evicted
}

// SweepEmpty tears down rooms that have had no members for longer than
// grace. Returns the number of rooms removed.
func (r *RoomRegistry) SweepEmpty(grace time.Duration) int {
	cutoff := time.Now().Add(-grace)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for post, rm := range r.rooms {
		rm.mu.Lock()
		empty := len(rm.members) == 0 && !rm.emptySince.IsZero() && rm.emptySince.Before(cutoff)
		rm.mu.Unlock()
		if empty {
			delete(r.rooms, post)
			removed++
			r.log.Info("Swept empty comment room", "post", post.String())
		}
	}
	return removed
}

// RoomStats is a point-in-time view of the registry for the ops surface.
type RoomStats struct {
	Rooms   int
	Members int
}

func (r *RoomRegistry) Stats() RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := RoomStats{Rooms: len(r.rooms)}
	for _, rm := range r.rooms {
		rm.mu.Lock()
		stats.Members += len(rm.members)
		rm.mu.Unlock()
	}
	return stats
}

// Shutdown notifies every member, lets queues flush until the deadline
// and closes all sessions. Joins are refused from the first moment.
func (r *RoomRegistry) Shutdown(flushDeadline time.Duration) {
	r.mu.Lock()
	r.closed = true
	rooms := r.rooms
	r.rooms = make(map[uuid.UUID]*room)
	r.mu.Unlock()

	closing := event.ServerClosing{At: time.Now().UTC()}
	var sessions []*Session
	for _, rm := range rooms {
		rm.mu.Lock()
		for _, sess := range rm.members {
			_ = sess.Consume(closing)
			sessions = append(sessions, sess)
		}
		rm.members = make(map[uuid.UUID]*Session)
		rm.mu.Unlock()
	}

	deadline := time.Now().Add(flushDeadline)
	for _, sess := range sessions {
		for sess.QueueLen() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		sess.Close()
	}
	r.log.Info("Comment rooms shut down",
		"rooms_closed", len(rooms),
		"connections_closed", len(sessions))
}

// obtain returns the post's room, creating it lazily. A fresh room seeds
// its sequence counter and replay window from the persisted comments so
// that sequence numbers stay monotonic across teardown and recreation.
func (r *RoomRegistry) obtain(ctx context.Context, postID uuid.UUID) (*room, error) {
	r.mu.RLock()
	rm, ok := r.rooms[postID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errors.ErrHubClosed
	}
	if ok {
		return rm, nil
	}

	// Seed outside the registry lock; a racing creator just wins the map.
	seeded, err := r.seed(ctx, postID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.ErrHubClosed
	}
	if rm, ok := r.rooms[postID]; ok {
		return rm, nil
	}
	r.rooms[postID] = seeded
	r.log.Info("Comment room created", "post", postID.String(), "seq", seeded.seq)
	return seeded, nil
}

func (r *RoomRegistry) seed(ctx context.Context, postID uuid.UUID) (*room, error) {
	rm := &room{
		post:       postID,
		members:    make(map[uuid.UUID]*Session),
		emptySince: time.Now(),
	}

	// Newest first from the store; reverse into chronological replay order.
	persisted, _, err := r.comments.GetComments(ctx, postID, nil)
	if err != nil {
		return nil, err
	}
	if len(persisted) > r.replaySize {
		persisted = persisted[:r.replaySize]
	}
	for i := len(persisted) - 1; i >= 0; i-- {
		c := persisted[i]
		rm.replay = append(rm.replay, event.CommentPosted{
			Post:    c.PostID,
			Comment: c.ID,
			Author:  c.AuthorID,
			Content: c.Content,
			Lang:    c.Lang,
			Seq:     c.Seq,
			At:      c.CreatedAt,
		})
		if c.Seq > rm.seq {
			rm.seq = c.Seq
		}
	}
	return rm, nil
}

// broadcastLocked delivers evt to every member. Callers hold rm.mu and
// evict the returned full sessions after releasing it.
func (rm *room) broadcastLocked(evt event.DomainEvent) []uuid.UUID {
	var dead []uuid.UUID
	for id, sess := range rm.members {
		if err := sess.Consume(evt); err != nil {
			dead = append(dead, id)
		}
	}
	return dead
}

func (r *RoomRegistry) evict(rm *room, dead []uuid.UUID) {
	for _, id := range dead {
		r.log.Warn("Evicting slow room member",
			"post", rm.post.String(),
			"connection", id.String())
		r.Leave(rm.post, id)
	}
}
