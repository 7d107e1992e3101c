package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pable/cs-impact/internal/model"
	"github.com/pable/cs-impact/internal/piv"
	"github.com/pable/cs-impact/internal/roles"
)

// LoadRoles reads the role book: name, t_role, ct_role and an optional
// is_igl flag. A table with a single "role" (or "primary_role") column
// applies that role to both sides, and marks IGL rows as in-game leaders.
// Role names are kept verbatim; the classifier validates them.
func LoadRoles(r io.Reader) ([]roles.Entry, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, nil
	}
	if err := t.require("name"); err != nil {
		return nil, err
	}
	single := ""
	switch {
	case t.has("t_role") && t.has("ct_role"):
	case t.has("role"):
		single = "role"
	case t.has("primary_role"):
		single = "primary_role"
	default:
		return nil, fmt.Errorf("%w: t_role and ct_role (or role)", ErrMissingColumn)
	}

	out := make([]roles.Entry, 0, len(t.rows))
	for _, row := range t.rows {
		e := roles.Entry{Name: t.cell(row, "name")}
		if e.Name == "" {
			continue
		}
		if single != "" {
			e.TRole = t.cell(row, single)
			e.CTRole = e.TRole
			if r, ok := model.ParseRole(e.TRole); ok && r == model.RoleIGL {
				e.IsIGL = true
			}
		} else {
			e.TRole = t.cell(row, "t_role")
			e.CTRole = t.cell(row, "ct_role")
		}
		if t.has("is_igl") {
			e.IsIGL = e.IsIGL || parseFlag(t.cell(row, "is_igl"))
		}
		out = append(out, e)
	}
	return out, nil
}

// LoadRolesFile opens path and loads it with LoadRoles.
func LoadRolesFile(path string) ([]roles.Entry, error) {
	return openFile(path, LoadRoles)
}

// parseFlag accepts true/false, 1/0 and yes/no.
func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// LoadRoleWeights reads an external role core score table with columns
// role, metric, weight and an optional side (T, CT or blank for both).
// Extra columns such as a free-text definition are ignored. The result
// replaces the built-in table and is validated before it is returned.
// Role/side pairs it leaves out score with the fallback weights.
func LoadRoleWeights(r io.Reader) (piv.WeightTable, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("%w: role weight table has no rows", piv.ErrInvalidWeights)
	}
	if err := t.require("role", "metric", "weight"); err != nil {
		return nil, err
	}

	w := make(piv.WeightTable)
	for i, row := range t.rows {
		role, ok := model.ParseRole(t.cell(row, "role"))
		if !ok {
			return nil, errRow(piv.ErrInvalidWeights, i, "unknown role %q", t.cell(row, "role"))
		}
		metric := strings.ToLower(t.cell(row, "metric"))
		weight, err := strconv.ParseFloat(t.cell(row, "weight"), 64)
		if err != nil {
			return nil, errRow(piv.ErrInvalidWeights, i, "weight %q is not a number", t.cell(row, "weight"))
		}

		sides := []model.Side{model.SideT, model.SideCT}
		if s := t.cell(row, "side"); s != "" && !strings.EqualFold(s, "both") {
			side := model.ParseSide(s)
			if side == model.SideUnknown {
				return nil, errRow(piv.ErrInvalidWeights, i, "unknown side %q", s)
			}
			sides = []model.Side{side}
		}
		for _, s := range sides {
			w.Set(role, s, metric, weight)
		}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadRoleWeightsFile opens path and loads it with LoadRoleWeights.
func LoadRoleWeightsFile(path string) (piv.WeightTable, error) {
	return openFile(path, LoadRoleWeights)
}
