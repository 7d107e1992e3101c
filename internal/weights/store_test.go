package weights

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pable/cs-impact/internal/model"
)

func TestFileStoreFallback(t *testing.T) {
	l := newLearner()
	s := NewFileStore(t.TempDir(), func() model.WeightTable { return l.DefaultTable(fitTime) })

	w, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if w.Meta.Source != model.WeightsDefault {
		t.Errorf("empty store: got source %q, want default", w.Meta.Source)
	}
}

func TestFileStoreSaveLatest(t *testing.T) {
	dir := t.TempDir()
	l := newLearner()
	s := NewFileStore(dir, func() model.WeightTable { return l.DefaultTable(fitTime) })

	first := model.WeightTable{
		Meta:    model.WeightMeta{Version: "202502091830", FitDate: "2025-02-09", SampleCount: 12, Source: model.WeightsLearned, Alpha: 1},
		Weights: map[model.Feature]float64{model.FeatureKD: 0.7, model.FeaturePIV: 0.3},
	}
	second := first
	second.Meta.Version = "202502101200"
	second.Meta.FitDate = "2025-02-10"
	second.Weights = map[model.Feature]float64{model.FeatureKD: 0.2, model.FeatureRoleBalance: 0.8}

	for _, w := range []model.WeightTable{first, second} {
		if err := s.Save(w); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Meta.Version != second.Meta.Version || got.Meta.SampleCount != 12 || got.Meta.Source != model.WeightsLearned {
		t.Errorf("latest meta: %+v", got.Meta)
	}
	if len(got.Weights) != 2 || got.Weights[model.FeatureRoleBalance] != 0.8 {
		t.Errorf("latest weights should be fully replaced: %v", got.Weights)
	}

	current, err := Load(filepath.Join(dir, currentFile))
	if err != nil {
		t.Fatalf("Load current: %v", err)
	}
	if current.Meta.Version != second.Meta.Version {
		t.Errorf("current version: got %q", current.Meta.Version)
	}

	hist, err := s.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history: got %d snapshots, want 2", len(hist))
	}
	old, err := Load(hist[0])
	if err != nil {
		t.Fatalf("Load history: %v", err)
	}
	if old.Weights[model.FeatureKD] != 0.7 {
		t.Errorf("history snapshot should keep the first table: %v", old.Weights)
	}
}

func TestSnapshotsOldestFirst(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	snaps, err := s.Snapshots()
	if err != nil || len(snaps) != 0 {
		t.Fatalf("empty store: got %v, %v", snaps, err)
	}

	for i, v := range []string{"20250209183000-aaaa", "20250209183040-bbbb", "20250210090000-cccc"} {
		fit := "2025-02-09"
		if i == 2 {
			fit = "2025-02-10"
		}
		tbl := model.WeightTable{
			Weights: map[model.Feature]float64{model.FeatureKD: float64(i + 1)},
			Meta:    model.WeightMeta{Version: v, FitDate: fit, Source: model.WeightsLearned, SampleCount: 12},
		}
		if err := s.Save(tbl); err != nil {
			t.Fatalf("Save %s: %v", v, err)
		}
	}

	snaps, err = s.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("snapshots: got %d, want 3", len(snaps))
	}
	for i, want := range []string{"20250209183000-aaaa", "20250209183040-bbbb", "20250210090000-cccc"} {
		if snaps[i].Meta.Version != want {
			t.Errorf("snapshot %d: got version %q, want %q", i, snaps[i].Meta.Version, want)
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	cases := []struct{ name, body string }{
		{"feature.yaml", "source: learned\nweights:\n  aim: 1\n"},
		{"source.yaml", "source: guessed\nweights:\n  kd: 1\n"},
		{"negative.yaml", "source: learned\nweights:\n  kd: -1\n"},
		{"broken.yaml", "weights: ["},
	}
	for _, c := range cases {
		if _, err := Load(write(c.name, c.body)); !errors.Is(err, ErrInvalidTable) {
			t.Errorf("%s: got %v, want ErrInvalidTable", c.name, err)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v, want ErrNotExist", err)
	}
}
