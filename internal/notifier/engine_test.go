package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XSFORM/XMPLUS-info/internal/access"
	"github.com/XSFORM/XMPLUS-info/internal/domain"
	"github.com/XSFORM/XMPLUS-info/internal/store"
	"github.com/XSFORM/XMPLUS-info/internal/tzsvc"
)

type fakeStore struct {
	records  []domain.Record
	applied  [][]store.NotificationUpdate
	listErr  error
	applyErr error
}

func (f *fakeStore) List(_ context.Context, flt store.Filter) ([]domain.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Record
	for _, r := range f.records {
		if flt.Dealer == "" || r.Dealer == flt.Dealer {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyNotifications(_ context.Context, ups []store.NotificationUpdate) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, ups)
	return nil
}

type sentMsg struct {
	chat int64
	text string
}

type fakeSender struct {
	sent     []sentMsg
	failChat int64 // deliveries to this chat fail
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	if chatID == f.failChat {
		return errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, sentMsg{chatID, text})
	return nil
}

type memOverride struct {
	name string
	set  bool
}

func (m *memOverride) Get() (string, bool, error) { return m.name, m.set, nil }
func (m *memOverride) Set(name string) error      { m.name, m.set = name, true; return nil }

// newEngine builds an engine frozen at the given UTC instant, with the
// active timezone Asia/Ashgabat (UTC+05, no DST).
func newEngine(t *testing.T, repo *fakeStore, sender *fakeSender, nowUTC string) *Engine {
	t.Helper()
	at, err := time.Parse("2006-01-02 15:04:05", nowUTC)
	require.NoError(t, err)
	tz, err := tzsvc.NewWithClock("Asia/Ashgabat", &memOverride{}, func() time.Time { return at.UTC() })
	require.NoError(t, err)

	cfg := Config{
		Interval:         time.Minute,
		WarnWindow:       3 * time.Hour,
		MaxNotifications: 2,
		OwnerChatID:      900,
	}
	return New(repo, tz, access.Scope{Role: access.RoleFull}, sender, cfg, zap.NewNop())
}

func record(id int64, due string, count int) domain.Record {
	w, err := domain.ParseWall(due)
	if err != nil {
		panic(err)
	}
	chat := int64(100 + id)
	return domain.Record{
		ID: id, UserID: id * 10, Username: "user", Due: w,
		Dealer: domain.DefaultDealer, ChatID: &chat, NotifiedCount: count,
	}
}

func TestTick_WarningInsideWindow(t *testing.T) {
	// Local now 12:00, due 14:00, window 3h → warn.
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-20 14:00:00", 0)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 07:00:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(101), sender.sent[0].chat)
	require.Contains(t, sender.sent[0].text, "Reminder")
	require.Contains(t, sender.sent[0].text, "2025-10-20 14:00:00")
	require.Contains(t, sender.sent[0].text, "UTC+05:00")

	require.Len(t, repo.applied, 1)
	require.Equal(t, 1, repo.applied[0][0].NotifiedCount)
	require.Equal(t, int64(1), repo.applied[0][0].ID)
}

func TestTick_WarningNotYetInsideWindow(t *testing.T) {
	// Local now 09:00, due 14:00 → 5h out, no warning.
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-20 14:00:00", 0)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 04:00:00").Tick(context.Background())

	require.Empty(t, sender.sent)
	require.Empty(t, repo.applied)
}

func TestTick_ExpiryClampsToMax(t *testing.T) {
	// Local now 14:30, due 14:00, already warned → expiry, count jumps to max.
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-20 14:00:00", 1)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].text, "Expired")
	require.Len(t, repo.applied, 1)
	require.Equal(t, 2, repo.applied[0][0].NotifiedCount)
}

func TestTick_PendingJumpsStraightToExhausted(t *testing.T) {
	// Due already past with no prior warning: one expiry notice, never a
	// warning, count clamped to max.
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-19 10:00:00", 0)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].text, "Expired")
	require.Equal(t, 2, repo.applied[0][0].NotifiedCount)
}

func TestTick_ExhaustedRecordIsSkipped(t *testing.T) {
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-19 10:00:00", 2)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())

	require.Empty(t, sender.sent)
	require.Empty(t, repo.applied)
}

func TestTick_NoDestinationIsSkipped(t *testing.T) {
	rec := record(1, "2025-10-19 10:00:00", 0)
	rec.ChatID = nil
	repo := &fakeStore{records: []domain.Record{rec}}
	sender := &fakeSender{}

	e := newEngine(t, repo, sender, "2025-10-20 09:30:00")
	e.cfg.OwnerChatID = 0
	e.Tick(context.Background())

	require.Empty(t, sender.sent)
	require.Empty(t, repo.applied)
}

func TestTick_FallsBackToOwnerChat(t *testing.T) {
	rec := record(1, "2025-10-19 10:00:00", 0)
	rec.ChatID = nil
	repo := &fakeStore{records: []domain.Record{rec}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(900), sender.sent[0].chat)
}

func TestTick_DeliveryFailureKeepsStateAndContinues(t *testing.T) {
	// First record's chat fails; second record must still be evaluated,
	// and only the second's state change is persisted.
	repo := &fakeStore{records: []domain.Record{
		record(1, "2025-10-19 10:00:00", 0),
		record(2, "2025-10-19 10:00:00", 0),
	}}
	sender := &fakeSender{failChat: 101}

	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(102), sender.sent[0].chat)
	require.Len(t, repo.applied, 1)
	require.Len(t, repo.applied[0], 1)
	require.Equal(t, int64(2), repo.applied[0][0].ID)
}

func TestTick_WarningAndExpiryNeverInSameTick(t *testing.T) {
	// A record warned in this tick is not also expired in this tick, even
	// though the due instant is only minutes away.
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-20 14:30:00", 0)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 09:25:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].text, "Reminder")
	require.Equal(t, 1, repo.applied[0][0].NotifiedCount)
}

func TestTick_AdminScopeSkipsDealerRecords(t *testing.T) {
	delegated := record(1, "2025-10-19 10:00:00", 0)
	delegated.Dealer = "west"
	repo := &fakeStore{records: []domain.Record{
		delegated,
		record(2, "2025-10-19 10:00:00", 0),
	}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.Equal(t, int64(102), sender.sent[0].chat)
}

func TestTick_PersistFailureIsContained(t *testing.T) {
	repo := &fakeStore{
		records:  []domain.Record{record(1, "2025-10-19 10:00:00", 0)},
		applyErr: errors.New("disk full"),
	}
	sender := &fakeSender{}

	// Must not panic; the notice went out, state retries next tick.
	newEngine(t, repo, sender, "2025-10-20 09:30:00").Tick(context.Background())
	require.Len(t, sender.sent, 1)
}

func TestWarningTextNamesTheWindow(t *testing.T) {
	repo := &fakeStore{records: []domain.Record{record(1, "2025-10-20 14:00:00", 0)}}
	sender := &fakeSender{}

	newEngine(t, repo, sender, "2025-10-20 07:00:00").Tick(context.Background())

	require.Len(t, sender.sent, 1)
	require.True(t, strings.Contains(sender.sent[0].text, "3h"), "warning must name the lead window")
}
