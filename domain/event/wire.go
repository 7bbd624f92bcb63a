package event

import (
	"encoding/json"
	"fmt"
)

// Unmarshal decodes a wire payload back into the concrete event for its
// kind. It is the client-side counterpart of the JSON envelope the stream
// handlers write.
func Unmarshal(kind Kind, data []byte) (DomainEvent, error) {
	switch kind {
	case KindSubmitted:
		return decode[PostSubmitted](data)
	case KindApproved, KindRejected:
		return decode[PostDecided](data)
	case KindComment:
		return decode[CommentPosted](data)
	case KindJoined:
		return decode[MemberJoined](data)
	case KindLeft:
		return decode[MemberLeft](data)
	case KindHeartbeat:
		return decode[Heartbeat](data)
	case KindSnapshot:
		return decode[PendingSnapshot](data)
	case KindError:
		return decode[ErrorNotice](data)
	case KindServerClosing:
		return decode[ServerClosing](data)
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

func decode[E DomainEvent](data []byte) (DomainEvent, error) {
	var evt E
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", evt, err)
	}
	return evt, nil
}
