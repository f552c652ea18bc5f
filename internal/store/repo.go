package store

import (
	"context"
	"errors"
	"time"

	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Filter narrows record queries. The zero value matches everything.
type Filter struct {
	Dealer string // exact dealer tag; empty matches any
}

// NotificationUpdate carries the bookkeeping outcome for one record after a
// successful delivery.
type NotificationUpdate struct {
	ID             int64
	NotifiedCount  int
	LastNotifiedAt time.Time
}

// ReassignResult reports the outcome of a bulk dealer reassignment.
type ReassignResult struct {
	Found   int // records matching the supplied ids
	Changed int // records whose dealer tag actually changed
}

// Repo defines storage operations for subscription records.
type Repo interface {
	Create(ctx context.Context, r *domain.Record) error
	GetByID(ctx context.Context, id int64) (*domain.Record, error)
	List(ctx context.Context, f Filter) ([]domain.Record, error)
	FindByUserID(ctx context.Context, userID int64, f Filter) ([]domain.Record, error)
	Count(ctx context.Context, f Filter) (int, error)
	CountByDealer(ctx context.Context) (map[string]int, error)

	// SetDue replaces the due date and re-arms the notification state:
	// notified_count goes back to 0 and last_notified_at is cleared.
	SetDue(ctx context.Context, id int64, due domain.WallTime) error

	Delete(ctx context.Context, id int64) error
	DeleteByUserID(ctx context.Context, userID int64, f Filter) (int64, error)

	// ReassignDealer retags every record whose user id is in ids, in one
	// transaction, regardless of prior tag.
	ReassignDealer(ctx context.Context, ids []int64, dealer string) (ReassignResult, error)

	// ApplyNotifications persists a tick's bookkeeping changes in one
	// transaction.
	ApplyNotifications(ctx context.Context, ups []NotificationUpdate) error

	Close() error
}
