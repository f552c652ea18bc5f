package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/XSFORM/XMPLUS-info/internal/access"
	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

// UI texts in English
const (
	msgStart = "✅ XMPLUS bot is running.\n" +
		"Commands are in the menu and on the keyboard below."
	msgCancelled  = "Cancelled."
	msgNotAllowed = "This command is not available for this bot."
	msgStoreError = "Storage error. The operation was not applied, please try again."

	msgAddAskUserID = "Step 1/3. Send the USER ID (a number):"
	msgAddAskLabel  = "Step 2/3. Send the USERNAME (e.g. XmADMIN):"
	msgAddAskDue    = "Step 3/3. Send the due date and time, strictly as:\n" +
		"YYYY-MM-DD HH:MM:SS\nExample: 2025-10-20 15:35:43"
	msgAdded = "Added: [%d] USERID=%d, USERNAME=%s, DUE=%s"

	msgBadUserID  = "USER ID must be a non-negative number. Try again or /cancel."
	msgEmptyLabel = "USERNAME must not be empty. Try again or /cancel."
	msgBadDate    = "Wrong format. Use YYYY-MM-DD HH:MM:SS, e.g. 2025-10-20 15:35:43.\n" +
		"Try again or /cancel."

	msgRenewAskUserID = "Send the USER ID to renew:"
	msgRenewAskDue    = "Renewing [%d] %s (current due %s).\n" +
		"Pick a shortcut below or send a new date as YYYY-MM-DD HH:MM:SS."
	msgConfirmRenew = "Renew [%d] %s until %s? (yes/no)"
	msgRenewed      = "Renewed: [%d] %s, new due %s. Notifications re-armed."

	msgDeleteAskUserID  = "Send the USER ID to delete:"
	msgConfirmDelete    = "Delete [%d] %s (due %s)? (yes/no)"
	msgConfirmDeleteAll = "Delete all %d records for USER ID %d? (yes/no)"
	msgDeleted          = "Deleted: [%d] %s."
	msgDeletedAll       = "Deleted %d record(s) for USER ID %d."

	msgNoMatches  = "No records for USER ID %d. Try another id or /cancel."
	msgPickMatch  = "Several records match. Pick one:"
	msgUseButtons = "Use the buttons above, or /cancel."

	msgReassignAskIDs = "Send the USER IDs to reassign (numbers, any separators):"
	msgNoIDsFound     = "No numbers found in that message. Try again or /cancel."
	msgReassignAskTag = "Got %d unique id(s). Pick the target dealer:"
	msgUnknownTag     = "Unknown dealer. Known: %s"
	msgReassigned     = "Reassigned to %s.\nIDs supplied: %d\nRecords found: %d\nTag changed: %d"

	msgEmptyList  = "The list is empty."
	msgNoUpcoming = "Nothing upcoming in that window."
	msgNoExpired  = "Nothing expired."
	msgBadWindow  = "Usage: /upcoming [hours], e.g. /upcoming 48"

	msgBadTimezone = "Invalid timezone. IANA names are supported, e.g. Europe/Moscow, Asia/Tashkent, UTC."
)

// commandHelp backs /help; order matters.
var commandHelp = []struct {
	name, desc string
	fullOnly   bool
}{
	{"add", "add a record (wizard: USER ID → USERNAME → due date)", true},
	{"renew", "renew a record's due date", true},
	{"delete", "delete records by USER ID", true},
	{"reassign", "move records to another dealer", true},
	{"list", "all visible records", false},
	{"upcoming", "records due within a window, /upcoming [hours]", false},
	{"expired", "records past their due date", false},
	{"status", "bot status", false},
	{"export", "CSV export of visible records", false},
	{"timezone", "show or switch the active timezone", false},
	{"dealers", "records per dealer", true},
	{"cancel", "abort the current wizard", false},
}

func mainMenuKeyboard(scope access.Scope) tgbotapi.ReplyKeyboardMarkup {
	if scope.Role == access.RoleFull {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/add"),
				tgbotapi.NewKeyboardButton("/renew"),
				tgbotapi.NewKeyboardButton("/delete"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/list"),
				tgbotapi.NewKeyboardButton("/upcoming"),
				tgbotapi.NewKeyboardButton("/status"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/timezone"),
				tgbotapi.NewKeyboardButton("/cancel"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/list"),
			tgbotapi.NewKeyboardButton("/upcoming"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/expired"),
			tgbotapi.NewKeyboardButton("/status"),
		),
	)
}

// disambigKeyboard offers one button per matching record, labeled by due
// date and username; delete additionally offers removing every match.
func disambigKeyboard(recs []domain.Record, withDeleteAll bool) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(recs)+1)
	for _, rec := range recs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s · %s", rec.Due.String(), rec.Username),
				fmt.Sprintf("pick:%d", rec.ID),
			),
		))
	}
	if withDeleteAll {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 Delete all %d matching", len(recs)), "pickall"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// renewQuickPickKeyboard offers the two due-date shortcuts: keep the current
// due date, or shift it one calendar month (day clamped).
func renewQuickPickKeyboard(rec domain.Record) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"Keep "+rec.Due.String(), "due:keep"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"+1 month → "+rec.Due.AddMonths(1).String(), "due:month"),
		),
	)
}

func tagKeyboard(dealers []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(dealers))
	for _, d := range dealers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(d, "tag:"+d),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func tzPresetKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/timezone Asia/Ashgabat"),
			tgbotapi.NewKeyboardButton("/timezone Europe/Moscow"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/timezone Asia/Tashkent"),
			tgbotapi.NewKeyboardButton("/timezone UTC"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/cancel"),
			tgbotapi.NewKeyboardButton("/hide"),
		),
	)
}
