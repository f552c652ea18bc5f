package access

import (
	"testing"

	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		mode    string
		want    Role
		wantErr bool
	}{
		{"admin", RoleFull, false},
		{"ADMIN", RoleFull, false},
		{" dealer ", RoleScoped, false},
		{"", RoleFull, false},
		{"root", RoleFull, true},
	}
	for _, c := range cases {
		got, err := ParseRole(c.mode)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseRole(%q): err=%v", c.mode, err)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("ParseRole(%q): want %v, got %v", c.mode, c.want, got)
		}
	}
}

func TestAllows(t *testing.T) {
	full := Scope{Role: RoleFull}
	scoped := Scope{Role: RoleScoped, Dealer: "west"}

	mutating := []string{CmdAdd, CmdRenew, CmdDelete, CmdReassign, CmdDealers, CmdSetTimezone}
	for _, cmd := range mutating {
		if !full.Allows(cmd) {
			t.Errorf("full role must allow %s", cmd)
		}
		if scoped.Allows(cmd) {
			t.Errorf("scoped role must not allow %s", cmd)
		}
	}

	reads := []string{CmdList, CmdUpcoming, CmdExpired, CmdStatus, CmdExport}
	for _, cmd := range reads {
		if !full.Allows(cmd) || !scoped.Allows(cmd) {
			t.Errorf("read command %s must be allowed for both roles", cmd)
		}
	}
}

func TestFilter(t *testing.T) {
	if f := (Scope{Role: RoleFull}).Filter(); f.Dealer != "" {
		t.Errorf("full filter must be unrestricted, got %+v", f)
	}
	if f := (Scope{Role: RoleScoped, Dealer: "west"}).Filter(); f.Dealer != "west" {
		t.Errorf("scoped filter must narrow to own tag, got %+v", f)
	}
}

func TestNotifyFilter(t *testing.T) {
	if f := (Scope{Role: RoleFull}).NotifyFilter(); f.Dealer != domain.DefaultDealer {
		t.Errorf("full deployments notify only the default tag, got %+v", f)
	}
	if f := (Scope{Role: RoleScoped, Dealer: "west"}).NotifyFilter(); f.Dealer != "west" {
		t.Errorf("scoped deployments notify only their own tag, got %+v", f)
	}
}
