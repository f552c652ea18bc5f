// Package access narrows queries and gates commands by deployment role. An
// admin deployment sees everything; a dealer deployment sees only records
// carrying its own tag.
package access

import (
	"fmt"
	"strings"

	"github.com/XSFORM/XMPLUS-info/internal/domain"
	"github.com/XSFORM/XMPLUS-info/internal/store"
)

// Role is the deployment's access level.
type Role int

const (
	RoleFull   Role = iota // admin: all records, all commands
	RoleScoped             // dealer: own tag only, read commands only
)

// ParseRole maps the BOT_MODE setting onto a Role.
func ParseRole(mode string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "admin", "":
		return RoleFull, nil
	case "dealer":
		return RoleScoped, nil
	default:
		return RoleFull, fmt.Errorf("unknown bot mode %q", mode)
	}
}

// Command names used for gating.
const (
	CmdAdd         = "add"
	CmdRenew       = "renew"
	CmdDelete      = "delete"
	CmdReassign    = "reassign"
	CmdDealers     = "dealers"
	CmdSetTimezone = "settimezone"

	CmdList     = "list"
	CmdUpcoming = "upcoming"
	CmdExpired  = "expired"
	CmdStatus   = "status"
	CmdExport   = "export"
)

// fullOnly marks mutating and administrative commands.
var fullOnly = map[string]bool{
	CmdAdd:         true,
	CmdRenew:       true,
	CmdDelete:      true,
	CmdReassign:    true,
	CmdDealers:     true,
	CmdSetTimezone: true,
}

// Scope is the caller context every query and command check runs under.
type Scope struct {
	Role   Role
	Dealer string
}

// Allows reports whether the command may run under this scope. Read commands
// pass for both roles; they still go through Filter.
func (s Scope) Allows(cmd string) bool {
	return s.Role == RoleFull || !fullOnly[cmd]
}

// Filter narrows record queries to the caller's visibility.
func (s Scope) Filter() store.Filter {
	if s.Role == RoleFull {
		return store.Filter{}
	}
	return store.Filter{Dealer: s.Dealer}
}

// NotifyFilter selects the records this deployment notifies about. An admin
// deployment covers only the reserved default tag, so it never re-notifies
// records already delegated to a dealer deployment; a dealer covers its own.
func (s Scope) NotifyFilter() store.Filter {
	if s.Role == RoleFull {
		return store.Filter{Dealer: domain.DefaultDealer}
	}
	return store.Filter{Dealer: s.Dealer}
}
