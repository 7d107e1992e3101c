package weights

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pable/cs-impact/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTable is returned when a stored weight file cannot be used.
var ErrInvalidTable = errors.New("invalid weight table")

const (
	currentFile = "learned_weights.yaml"
	historyDir  = "history"
	latestDir   = "latest"
)

// Store persists weight tables.
type Store interface {
	Save(t model.WeightTable) error
	Latest() (model.WeightTable, error)
}

// weightFile is the on-disk form of a weight table.
type weightFile struct {
	Version     string             `yaml:"version"`
	FitDate     string             `yaml:"fit_date"`
	SampleCount int                `yaml:"sample_count"`
	Source      string             `yaml:"source"`
	Alpha       float64            `yaml:"alpha"`
	Weights     map[string]float64 `yaml:"weights"`
}

// FileStore keeps weight tables as YAML under a directory:
//
//	<dir>/learned_weights.yaml                        current table
//	<dir>/history/<fit_date>/learned_weights_<v>.yaml  dated snapshot
//	<dir>/latest/learned_weights.yaml                 latest pointer
//
// Save fully replaces the current and latest files.
type FileStore struct {
	dir      string
	fallback func() model.WeightTable
}

// NewFileStore returns a store rooted at dir. fallback supplies the table
// Latest returns when nothing has been learned yet.
func NewFileStore(dir string, fallback func() model.WeightTable) *FileStore {
	return &FileStore{dir: dir, fallback: fallback}
}

// Save writes t to the current, history and latest locations.
func (s *FileStore) Save(t model.WeightTable) error {
	b, err := yaml.Marshal(toFile(t))
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	date := t.Meta.FitDate
	if date == "" {
		date = time.Now().UTC().Format(time.DateOnly)
	}
	paths := []string{
		filepath.Join(s.dir, currentFile),
		filepath.Join(s.dir, historyDir, date, fmt.Sprintf("learned_weights_%s.yaml", t.Meta.Version)),
		filepath.Join(s.dir, latestDir, currentFile),
	}
	for _, p := range paths {
		if err := writeFile(p, b); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recently saved table, or the fallback table when
// none has been saved.
func (s *FileStore) Latest() (model.WeightTable, error) {
	t, err := Load(filepath.Join(s.dir, latestDir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return s.fallback(), nil
	}
	return t, err
}

// History lists saved snapshot paths, oldest first.
func (s *FileStore) History() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, historyDir, "*", "learned_weights_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Snapshots loads every saved snapshot, oldest first.
func (s *FileStore) Snapshots() ([]model.WeightTable, error) {
	paths, err := s.History()
	if err != nil {
		return nil, err
	}
	out := make([]model.WeightTable, 0, len(paths))
	for _, p := range paths {
		t, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Load reads one weight file and validates its feature names.
func Load(path string) (model.WeightTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.WeightTable{}, fmt.Errorf("read weights: %w", err)
	}
	var wf weightFile
	if err := yaml.Unmarshal(b, &wf); err != nil {
		return model.WeightTable{}, fmt.Errorf("%w: %s: %v", ErrInvalidTable, path, err)
	}
	return fromFile(wf, path)
}

func toFile(t model.WeightTable) weightFile {
	wf := weightFile{
		Version:     t.Meta.Version,
		FitDate:     t.Meta.FitDate,
		SampleCount: t.Meta.SampleCount,
		Source:      string(t.Meta.Source),
		Alpha:       t.Meta.Alpha,
		Weights:     make(map[string]float64, len(t.Weights)),
	}
	for f, v := range t.Weights {
		wf.Weights[string(f)] = v
	}
	return wf
}

func fromFile(wf weightFile, path string) (model.WeightTable, error) {
	src := model.WeightSource(strings.ToLower(wf.Source))
	if src != model.WeightsLearned && src != model.WeightsDefault {
		return model.WeightTable{}, fmt.Errorf("%w: %s: source %q", ErrInvalidTable, path, wf.Source)
	}
	t := model.WeightTable{
		Meta: model.WeightMeta{
			Version:     wf.Version,
			FitDate:     wf.FitDate,
			SampleCount: wf.SampleCount,
			Source:      src,
			Alpha:       wf.Alpha,
		},
		Weights: make(map[model.Feature]float64, len(wf.Weights)),
	}
	for name, v := range wf.Weights {
		f, ok := model.ParseFeature(name)
		if !ok {
			return model.WeightTable{}, fmt.Errorf("%w: %s: unknown feature %q", ErrInvalidTable, path, name)
		}
		if v < 0 {
			return model.WeightTable{}, fmt.Errorf("%w: %s: %s is negative", ErrInvalidTable, path, name)
		}
		t.Weights[f] = v
	}
	return t, nil
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	return nil
}
