// Package activity is the portal's audit/telemetry core: a never-failing
// write pipeline that routes typed activity records into per-user, auth, and
// system destinations of a document store, defers writes rejected on
// authorization grounds into a durable offline queue, and replays them once
// an acting identity becomes available.
package activity

import "encoding/json"

// Kind classifies an activity record. The set is closed; routing and
// destination selection switch on it exhaustively.
type Kind string

const (
	KindLogin         Kind = "login"
	KindLogout        Kind = "logout"
	KindSessionEnd    Kind = "session_end"
	KindPageView      Kind = "page_view"
	KindBookSearch    Kind = "book_search"
	KindFilterChange  Kind = "filter_change"
	KindBookView      Kind = "book_view"
	KindBorrowRequest Kind = "borrow_request"
	KindReturnRequest Kind = "return_request"
	KindViewHistory   Kind = "view_history"
	KindTabSwitch     Kind = "tab_switch"
	KindInteraction   Kind = "user_interaction"
	KindAPICall       Kind = "api_call"
	KindSystemError   Kind = "system_error"
	KindUnauthorized  Kind = "unauthorized_access"
)

// Fields is the variant payload of a record. Values may be the Absent
// sentinel (a field that was never set) or an untyped nil (an explicit
// null, which is preserved). Absent values are stripped before the record
// leaves the process; Fields marshals through the same filter so persisted
// queue entries never carry them either.
type Fields map[string]any

// MarshalJSON strips absent-valued entries before encoding.
func (f Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(cleanMap(f))
}

// Record is a single activity event. It is immutable once built; the only
// transformations applied before transmission are envelope stamping and
// absent-field redaction in the write pipeline.
type Record struct {
	Kind   Kind   `json:"kind"`
	UserID string `json:"userId,omitempty"`
	Role   string `json:"userRole,omitempty"`
	Fields Fields `json:"fields,omitempty"`
}

type serverTimestamp struct{}

// ServerTimestamp is the placeholder stamped into a record's envelope for
// the creation time. Store implementations substitute their own
// server-assigned time at append; records never carry a client clock.
var ServerTimestamp any = serverTimestamp{}

// ResolveServerTimestamps returns a copy of doc with every top-level
// ServerTimestamp placeholder replaced by value.
func ResolveServerTimestamps(doc Fields, value any) Fields {
	out := make(Fields, len(doc))
	for k, v := range doc {
		if v == ServerTimestamp {
			out[k] = value
			continue
		}
		out[k] = v
	}
	return out
}

// orAbsent maps the empty string to Absent so optional facade parameters
// redact away instead of persisting as "".
func orAbsent(s string) any {
	if s == "" {
		return Absent
	}
	return s
}
