package domain

import "time"

// DefaultDealer is the reserved tag for records not delegated to any dealer
// deployment. An admin deployment notifies only records carrying this tag.
const DefaultDealer = "main"

// Record is a tracked subscription: who it belongs to, when it lapses, and
// the notification bookkeeping for it.
type Record struct {
	ID       int64
	UserID   int64  // end-user identifier in the upstream panel
	Username string // display name for the end-user
	Due      WallTime
	Dealer   string
	ChatID   *int64 // notification destination; nil falls back to the owner chat

	NotifiedCount  int
	LastNotifiedAt *time.Time
	CreatedAt      time.Time
}

// NotifyChat returns the chat the record's notifications go to, falling back
// to owner. Returns 0 when no destination is resolvable.
func (r *Record) NotifyChat(owner int64) int64 {
	if r.ChatID != nil && *r.ChatID != 0 {
		return *r.ChatID
	}
	return owner
}
