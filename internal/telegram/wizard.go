package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

// wizardKind names the multi-step flows. Exactly one wizard may be active
// per chat; starting another discards the unfinished one.
type wizardKind int

const (
	wizardAdd wizardKind = iota + 1
	wizardRenew
	wizardDelete
	wizardReassign
)

type wizardStep int

const (
	stepAwaitUserID wizardStep = iota + 1
	stepAwaitLabel
	stepAwaitDue
	stepAwaitLookup
	stepAwaitDisambig
	stepAwaitNewDue
	stepAwaitConfirm
	stepAwaitIDList
	stepAwaitTargetTag
)

// session is one chat's wizard state. It lives in Router.sessions and is
// dropped on completion, cancellation, or any recognized command.
type session struct {
	kind wizardKind
	step wizardStep

	userID    int64
	label     string
	due       domain.WallTime
	matches   []domain.Record
	target    *domain.Record
	deleteAll bool
	ids       []int64
}

// affirmations accepted at a confirm step; anything else cancels.
var affirmations = map[string]bool{
	"yes": true,
	"y":   true,
	"ok":  true,
	"da":  true,
}

func isAffirmative(text string) bool {
	return affirmations[strings.ToLower(strings.TrimSpace(text))]
}

// textSteps maps (wizard, step) to the handler for an inbound text message.
var textSteps = map[wizardKind]map[wizardStep]func(*Router, context.Context, int64, *session, string){
	wizardAdd: {
		stepAwaitUserID: (*Router).addUserID,
		stepAwaitLabel:  (*Router).addLabel,
		stepAwaitDue:    (*Router).addDue,
	},
	wizardRenew: {
		stepAwaitLookup:   (*Router).lookupRecords,
		stepAwaitDisambig: (*Router).remindDisambig,
		stepAwaitNewDue:   (*Router).renewNewDue,
		stepAwaitConfirm:  (*Router).renewConfirm,
	},
	wizardDelete: {
		stepAwaitLookup:   (*Router).lookupRecords,
		stepAwaitDisambig: (*Router).remindDisambig,
		stepAwaitConfirm:  (*Router).deleteConfirm,
	},
	wizardReassign: {
		stepAwaitIDList:    (*Router).reassignIDList,
		stepAwaitTargetTag: (*Router).reassignTag,
	},
}

func (r *Router) continueWizard(ctx context.Context, chatID int64, s *session, text string) {
	if h := textSteps[s.kind][s.step]; h != nil {
		h(r, ctx, chatID, s, text)
		return
	}
	r.log.Warn("wizard in unexpected step",
		zap.Int("kind", int(s.kind)), zap.Int("step", int(s.step)))
	r.clearSession(chatID)
}

// handleCallback routes inline-button presses into the active wizard.
// Presses with no matching wizard state are ignored.
func (r *Router) handleCallback(ctx context.Context, chatID int64, data string) {
	s := r.session(chatID)
	if s == nil {
		return
	}

	switch {
	case strings.HasPrefix(data, "pick:"):
		if s.step != stepAwaitDisambig {
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "pick:"), 10, 64)
		if err != nil {
			return
		}
		for i := range s.matches {
			if s.matches[i].ID == id {
				r.selectTarget(chatID, s, &s.matches[i])
				return
			}
		}

	case data == "pickall":
		if s.kind != wizardDelete || s.step != stepAwaitDisambig {
			return
		}
		s.deleteAll = true
		s.step = stepAwaitConfirm
		r.sendText(chatID, fmt.Sprintf(msgConfirmDeleteAll, len(s.matches), s.userID))

	case strings.HasPrefix(data, "due:"):
		if s.kind != wizardRenew || s.step != stepAwaitNewDue || s.target == nil {
			return
		}
		switch strings.TrimPrefix(data, "due:") {
		case "keep":
			s.due = s.target.Due
		case "month":
			s.due = s.target.Due.AddMonths(1)
		default:
			return
		}
		s.step = stepAwaitConfirm
		r.sendText(chatID, fmt.Sprintf(msgConfirmRenew,
			s.target.ID, s.target.Username, s.due.String()))

	case strings.HasPrefix(data, "tag:"):
		if s.kind != wizardReassign || s.step != stepAwaitTargetTag {
			return
		}
		r.applyReassign(ctx, chatID, s, strings.TrimPrefix(data, "tag:"))
	}
}

// --- Add ---

func (r *Router) startAdd(chatID int64) {
	r.startSession(chatID, &session{kind: wizardAdd, step: stepAwaitUserID})
	r.sendText(chatID, msgAddAskUserID)
}

func (r *Router) addUserID(_ context.Context, chatID int64, s *session, text string) {
	id, err := domain.ParseUserID(text)
	if err != nil {
		r.sendText(chatID, msgBadUserID)
		return
	}
	s.userID = id
	s.step = stepAwaitLabel
	r.sendText(chatID, msgAddAskLabel)
}

func (r *Router) addLabel(_ context.Context, chatID int64, s *session, text string) {
	label, err := domain.ParseLabel(text)
	if err != nil {
		r.sendText(chatID, msgEmptyLabel)
		return
	}
	s.label = label
	s.step = stepAwaitDue
	r.sendText(chatID, msgAddAskDue)
}

func (r *Router) addDue(ctx context.Context, chatID int64, s *session, text string) {
	due, err := r.tz.ParseStrict(text)
	if err != nil {
		r.sendText(chatID, msgBadDate)
		return
	}

	notify := chatID
	rec := &domain.Record{
		UserID:   s.userID,
		Username: s.label,
		Due:      due,
		Dealer:   domain.DefaultDealer,
		ChatID:   &notify,
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		r.log.Error("create record failed", zap.Error(err))
		r.clearSession(chatID)
		r.sendText(chatID, msgStoreError)
		return
	}
	r.clearSession(chatID)
	r.sendText(chatID, fmt.Sprintf(msgAdded, rec.ID, rec.UserID, rec.Username, rec.Due.String()))
}

// --- Renew / Delete lookup ---

func (r *Router) startRenew(chatID int64) {
	r.startSession(chatID, &session{kind: wizardRenew, step: stepAwaitLookup})
	r.sendText(chatID, msgRenewAskUserID)
}

func (r *Router) startDelete(chatID int64) {
	r.startSession(chatID, &session{kind: wizardDelete, step: stepAwaitLookup})
	r.sendText(chatID, msgDeleteAskUserID)
}

// lookupRecords resolves a USER ID to records, branching on the match count:
// none re-prompts, one advances directly, several go to disambiguation.
func (r *Router) lookupRecords(ctx context.Context, chatID int64, s *session, text string) {
	id, err := domain.ParseUserID(text)
	if err != nil {
		r.sendText(chatID, msgBadUserID)
		return
	}

	recs, err := r.repo.FindByUserID(ctx, id, r.scope.Filter())
	if err != nil {
		r.log.Error("lookup failed", zap.Error(err), zap.Int64("user_id", id))
		r.clearSession(chatID)
		r.sendText(chatID, msgStoreError)
		return
	}
	if len(recs) == 0 {
		r.sendText(chatID, fmt.Sprintf(msgNoMatches, id))
		return
	}

	s.userID = id
	if len(recs) == 1 {
		r.selectTarget(chatID, s, &recs[0])
		return
	}

	s.matches = recs
	s.step = stepAwaitDisambig
	withDeleteAll := s.kind == wizardDelete
	r.sendWithMarkup(chatID, msgPickMatch, disambigKeyboard(recs, withDeleteAll))
}

func (r *Router) remindDisambig(_ context.Context, chatID int64, _ *session, _ string) {
	r.sendText(chatID, msgUseButtons)
}

// selectTarget pins the wizard to one record and advances past
// disambiguation.
func (r *Router) selectTarget(chatID int64, s *session, rec *domain.Record) {
	s.target = rec
	switch s.kind {
	case wizardRenew:
		s.step = stepAwaitNewDue
		r.sendWithMarkup(chatID,
			fmt.Sprintf(msgRenewAskDue, rec.ID, rec.Username, rec.Due.String()),
			renewQuickPickKeyboard(*rec))
	case wizardDelete:
		s.step = stepAwaitConfirm
		r.sendText(chatID, fmt.Sprintf(msgConfirmDelete, rec.ID, rec.Username, rec.Due.String()))
	}
}

// --- Renew ---

func (r *Router) renewNewDue(_ context.Context, chatID int64, s *session, text string) {
	due, err := r.tz.ParseStrict(text)
	if err != nil {
		r.sendText(chatID, msgBadDate)
		return
	}
	s.due = due
	s.step = stepAwaitConfirm
	r.sendText(chatID, fmt.Sprintf(msgConfirmRenew, s.target.ID, s.target.Username, due.String()))
}

func (r *Router) renewConfirm(ctx context.Context, chatID int64, s *session, text string) {
	r.clearSession(chatID)
	if !isAffirmative(text) {
		r.sendText(chatID, msgCancelled)
		return
	}
	// SetDue re-arms the notification state machine alongside the new date.
	if err := r.repo.SetDue(ctx, s.target.ID, s.due); err != nil {
		r.log.Error("renew failed", zap.Error(err), zap.Int64("record", s.target.ID))
		r.sendText(chatID, msgStoreError)
		return
	}
	r.sendText(chatID, fmt.Sprintf(msgRenewed, s.target.ID, s.target.Username, s.due.String()))
}

// --- Delete ---

func (r *Router) deleteConfirm(ctx context.Context, chatID int64, s *session, text string) {
	r.clearSession(chatID)
	if !isAffirmative(text) {
		r.sendText(chatID, msgCancelled)
		return
	}

	if s.deleteAll {
		n, err := r.repo.DeleteByUserID(ctx, s.userID, r.scope.Filter())
		if err != nil {
			r.log.Error("bulk delete failed", zap.Error(err), zap.Int64("user_id", s.userID))
			r.sendText(chatID, msgStoreError)
			return
		}
		r.sendText(chatID, fmt.Sprintf(msgDeletedAll, n, s.userID))
		return
	}

	if err := r.repo.Delete(ctx, s.target.ID); err != nil {
		r.log.Error("delete failed", zap.Error(err), zap.Int64("record", s.target.ID))
		r.sendText(chatID, msgStoreError)
		return
	}
	r.sendText(chatID, fmt.Sprintf(msgDeleted, s.target.ID, s.target.Username))
}

// --- Bulk reassign ---

func (r *Router) startReassign(chatID int64) {
	r.startSession(chatID, &session{kind: wizardReassign, step: stepAwaitIDList})
	r.sendText(chatID, msgReassignAskIDs)
}

func (r *Router) reassignIDList(_ context.Context, chatID int64, s *session, text string) {
	ids, err := domain.ParseIDList(text)
	if err != nil {
		r.sendText(chatID, msgNoIDsFound)
		return
	}
	s.ids = ids
	s.step = stepAwaitTargetTag
	r.sendWithMarkup(chatID, fmt.Sprintf(msgReassignAskTag, len(ids)), tagKeyboard(r.dealers))
}

func (r *Router) reassignTag(ctx context.Context, chatID int64, s *session, text string) {
	r.applyReassign(ctx, chatID, s, strings.TrimSpace(text))
}

func (r *Router) applyReassign(ctx context.Context, chatID int64, s *session, tag string) {
	if !r.knownDealer(tag) {
		r.sendText(chatID, fmt.Sprintf(msgUnknownTag, strings.Join(r.dealers, ", ")))
		return
	}

	res, err := r.repo.ReassignDealer(ctx, s.ids, tag)
	if err != nil {
		r.log.Error("reassign failed", zap.Error(err), zap.String("dealer", tag))
		r.clearSession(chatID)
		r.sendText(chatID, msgStoreError)
		return
	}
	r.clearSession(chatID)
	r.sendText(chatID, fmt.Sprintf(msgReassigned, tag, len(s.ids), res.Found, res.Changed))
}

func (r *Router) knownDealer(tag string) bool {
	for _, d := range r.dealers {
		if d == tag {
			return true
		}
	}
	return false
}
