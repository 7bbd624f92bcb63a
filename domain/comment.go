package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment is an immutable message in a post's live discussion room.
// Seq is the room-scoped sequence number: the single total order every
// member of the room observes.
type Comment struct {
	ID        uuid.UUID
	PostID    uuid.UUID
	AuthorID  uuid.UUID
	Content   string
	Lang      string
	Seq       uint64
	CreatedAt time.Time
}
