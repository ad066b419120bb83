package stream

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/warp/contribution-engine/contributor"
)

// Message is the published form of a committed event. Payload is the event
// itself as written by contributor.MarshalEvent.
type Message struct {
	EventID       string                `json:"event_id"`
	Kind          contributor.EventKind `json:"kind"`
	ContributorID string                `json:"contributor_id"`
	SeqNr         int64                 `json:"seq_nr"`
	Offset        int64                 `json:"offset"`
	Tag           string                `json:"tag"`
	CommittedAt   time.Time             `json:"committed_at"`
	Payload       json.RawMessage       `json:"payload"`
}

// NewMessage encodes env for publication.
func NewMessage(env Envelope) (Message, error) {
	kind, payload, err := contributor.MarshalEvent(env.Event)
	if err != nil {
		return Message{}, err
	}
	return Message{
		EventID:       env.EventID,
		Kind:          kind,
		ContributorID: env.AggregateID,
		SeqNr:         env.SeqNr,
		Offset:        env.Offset,
		Tag:           env.Tag,
		CommittedAt:   env.CommittedAt,
		Payload:       payload,
	}, nil
}

// Decode turns a published message back into its event.
func (m Message) Decode() (contributor.Event, error) {
	return contributor.UnmarshalEvent(m.Kind, m.Payload)
}
