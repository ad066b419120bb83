package contributor

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrUnknownEventKind is returned when decoding a kind this build does not
// know about.
var ErrUnknownEventKind = errors.New("unknown event kind")

// MarshalEvent encodes the payload of e. The kind is stored next to it so
// UnmarshalEvent knows which type to decode into.
func MarshalEvent(e Event) (EventKind, []byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s event: %w", e.Kind(), err)
	}
	return e.Kind(), data, nil
}

// UnmarshalEvent decodes a payload written by MarshalEvent.
func UnmarshalEvent(kind EventKind, data []byte) (Event, error) {
	switch kind {
	case KindRegistered:
		var e Registered
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", kind, err)
		}
		return e, nil
	case KindIncomeApplied:
		var e IncomeApplied
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", kind, err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
}
