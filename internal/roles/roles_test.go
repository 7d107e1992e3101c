package roles

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pable/cs-impact/internal/config"
	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

func newClassifier() *Classifier { return New(config.New().Classifier) }

func withDerived(name string, d model.Derived) model.PlayerRecord {
	return model.PlayerRecord{Name: name, Team: "T1", Event: "e", Derived: d}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want model.Role
	}{
		{"AWP", model.RoleAWP},
		{"awper", model.RoleAWP},
		{" lurker ", model.RoleLurker},
		{"SUPPORT", model.RoleSupport},
		{"Entry", model.RoleSpacetaker},
		{"spacetaker", model.RoleSpacetaker},
		{"anchor", model.RoleAnchor},
		{"Rotator", model.RoleRotator},
		{"igl", model.RoleIGL},
	}
	for _, c := range cases {
		got, err := ParseRole(c.in)
		if err != nil || got != c.want {
			t.Errorf("ParseRole(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
	if _, err := ParseRole("Sniper"); !errors.Is(err, diag.ErrUnknownRole) {
		t.Errorf("ParseRole(Sniper): got %v, want ErrUnknownRole", err)
	}
}

func TestPrimaryRole(t *testing.T) {
	cases := []struct {
		t, ct model.Role
		igl   bool
		want  model.Role
	}{
		{model.RoleLurker, model.RoleAnchor, true, model.RoleIGL},
		{model.RoleSupport, model.RoleAWP, false, model.RoleAWP},
		{model.RoleSpacetaker, model.RoleAnchor, false, model.RoleSpacetaker},
		{model.RoleLurker, model.RoleRotator, false, model.RoleLurker},
		{model.RoleSupport, model.RoleAnchor, false, model.RoleAnchor},
		{model.RoleSupport, model.RoleRotator, false, model.RoleSupport},
	}
	for _, c := range cases {
		if got := model.PrimaryRole(c.t, c.ct, c.igl); got != c.want {
			t.Errorf("PrimaryRole(%v,%v,%v) = %v, want %v", c.t, c.ct, c.igl, got, c.want)
		}
	}
}

func TestClassifyFromTable(t *testing.T) {
	book := NewBook([]Entry{
		{Name: " karrigan ", TRole: "Lurker", CTRole: "anchor", IsIGL: true},
		{Name: "ropz", TRole: "Sniper", CTRole: "Rotator"},
	})
	rec := diag.NewRecorder()
	out := newClassifier().Classify([]model.PlayerRecord{
		withDerived("karrigan", model.Derived{KD: 0.9}),
		withDerived("ropz", model.Derived{KD: 1.1}),
	}, book, rec)

	k := out[0].Roles
	if k.Source != model.RoleFromTable || !k.IsIGL || k.Primary != model.RoleIGL || k.CTRole != model.RoleAnchor {
		t.Errorf("karrigan: got %+v", k)
	}
	r := out[1].Roles
	if r.TRole != model.RoleSupport || r.CTRole != model.RoleRotator {
		t.Errorf("unknown T role should become Support: got %+v", r)
	}
	if got := rec.Count(diag.StageRoles, diag.ErrUnknownRole); got != 1 {
		t.Errorf("unknown role count: got %d, want 1", got)
	}
}

func TestClassifyHeuristic(t *testing.T) {
	cases := []struct {
		name    string
		d       model.Derived
		t, ct   model.Role
		primary model.Role
	}{
		{"fragger", model.Derived{KD: 1.5, FirstKillSuccess: 0.9}, model.RoleAWP, model.RoleAWP, model.RoleAWP},
		{"entry", model.Derived{KD: 1.1, FirstKillSuccess: 0.65}, model.RoleSpacetaker, model.RoleAnchor, model.RoleSpacetaker},
		{"support", model.Derived{KD: 0.9, FirstKillSuccess: 0.4, FlashEfficiency: 0.35}, model.RoleSupport, model.RoleRotator, model.RoleSupport},
		{"lurker", model.Derived{KD: 1.0, FirstKillSuccess: 0.5, FlashEfficiency: 0.1}, model.RoleLurker, model.RoleRotator, model.RoleLurker},
		{"threshold is exclusive", model.Derived{KD: 1.3}, model.RoleLurker, model.RoleRotator, model.RoleLurker},
	}
	c := newClassifier()
	for _, tc := range cases {
		got := c.Classify([]model.PlayerRecord{withDerived(tc.name, tc.d)}, nil, nil)[0].Roles
		if got.TRole != tc.t || got.CTRole != tc.ct || got.Primary != tc.primary || got.IsIGL {
			t.Errorf("%s: got %+v, want %v/%v primary %v", tc.name, got, tc.t, tc.ct, tc.primary)
		}
		if got.Source != model.RoleFromHeuristic {
			t.Errorf("%s: source %q, want heuristic", tc.name, got.Source)
		}
		if !got.Primary.Valid() {
			t.Errorf("%s: primary role %v outside the enumeration", tc.name, got.Primary)
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	book := NewBook([]Entry{{Name: "a", TRole: "awp", CTRole: "awp"}})
	in := []model.PlayerRecord{
		withDerived("a", model.Derived{KD: 1.2}),
		withDerived("b", model.Derived{KD: 0.7, FlashEfficiency: 0.5}),
	}
	c := newClassifier()
	once := c.Classify(in, book, nil)
	twice := c.Classify(once, book, nil)
	if !reflect.DeepEqual(once, twice) {
		t.Error("Classify is not idempotent")
	}
}
