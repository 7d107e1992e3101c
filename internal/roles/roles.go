// Package roles assigns tactical roles to players from an external role
// table, falling back to a stat-based heuristic.
package roles

import (
	"fmt"
	"strings"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

// Entry is one row of the role table. Role names are kept as written and
// validated when the table is applied.
type Entry struct {
	Name   string
	TRole  string
	CTRole string
	IsIGL  bool
}

// Book maps trimmed player names to their role entry.
type Book map[string]Entry

// NewBook indexes entries by trimmed name. A later entry for the same name
// replaces an earlier one.
func NewBook(entries []Entry) Book {
	b := make(Book, len(entries))
	for _, e := range entries {
		b[strings.TrimSpace(e.Name)] = e
	}
	return b
}

// Lookup finds the entry for a player name.
func (b Book) Lookup(name string) (Entry, bool) {
	e, ok := b[strings.TrimSpace(name)]
	return e, ok
}

// ParseRole accepts the seven role names case-insensitively plus the
// aliases "entry" and "awper".
func ParseRole(s string) (model.Role, error) {
	r, ok := model.ParseRole(s)
	if !ok {
		return model.RoleUnknown, fmt.Errorf("%w: %q", diag.ErrUnknownRole, s)
	}
	return r, nil
}

// Classifier assigns roles. It never fails: unknown role names become
// Support and unmatched players go through the heuristic.
type Classifier struct {
	cfg config.Classifier
}

// New returns a Classifier with the given heuristic thresholds.
func New(cfg config.Classifier) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns a copy of players with Roles set.
func (c *Classifier) Classify(players []model.PlayerRecord, book Book, rec *diag.Recorder) []model.PlayerRecord {
	out := make([]model.PlayerRecord, len(players))
	var fromTable, unknown int
	var firstUnknown string

	for i := range players {
		p := players[i]
		if e, ok := book.Lookup(p.Name); ok {
			tRole, errT := ParseRole(e.TRole)
			ctRole, errCT := ParseRole(e.CTRole)
			for _, err := range []error{errT, errCT} {
				if err == nil {
					continue
				}
				unknown++
				if firstUnknown == "" {
					firstUnknown = err.Error()
				}
			}
			if errT != nil {
				tRole = model.RoleSupport
			}
			if errCT != nil {
				ctRole = model.RoleSupport
			}
			p.Roles = model.RoleAssignment{
				TRole:   tRole,
				CTRole:  ctRole,
				IsIGL:   e.IsIGL,
				Primary: model.PrimaryRole(tRole, ctRole, e.IsIGL),
				Source:  model.RoleFromTable,
			}
			fromTable++
		} else {
			p.Roles = c.heuristic(&p.Derived)
		}
		out[i] = p
	}

	rec.Note(diag.StageRoles, diag.ErrUnknownRole, unknown, firstUnknown)
	rec.Note(diag.StageRoles, diag.ErrMissingInput, len(players)-fromTable, "no role table entry; heuristic used")
	rec.Rows(diag.StageRoles, len(out))
	return out
}

// heuristic picks side roles from derived stats. The first matching rule wins.
func (c *Classifier) heuristic(d *model.Derived) model.RoleAssignment {
	var t, ct model.Role
	switch {
	case d.KD > c.cfg.AWPKD:
		t, ct = model.RoleAWP, model.RoleAWP
	case d.FirstKillSuccess > c.cfg.EntryFKS:
		t, ct = model.RoleSpacetaker, model.RoleAnchor
	case d.FlashEfficiency > c.cfg.SupportFlashEf:
		t, ct = model.RoleSupport, model.RoleRotator
	default:
		t, ct = model.RoleLurker, model.RoleRotator
	}
	return model.RoleAssignment{
		TRole:   t,
		CTRole:  ct,
		Primary: model.PrimaryRole(t, ct, false),
		Source:  model.RoleFromHeuristic,
	}
}
