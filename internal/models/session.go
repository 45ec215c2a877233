package models

type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent is one authentication-state transition. Identity is set only for SignedIn.
type SessionEvent struct {
	Kind     SessionEventKind `json:"kind"`
	Identity *Identity        `json:"identity,omitempty"`
}
