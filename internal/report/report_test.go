package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pable/cs-impact/internal/diag"
	"github.com/pable/cs-impact/internal/model"
)

func TestWilsonCI(t *testing.T) {
	lo, hi := wilsonCI(0, 0)
	if lo != 0 || hi != 1 {
		t.Errorf("empty sample: got [%v, %v], want [0, 1]", lo, hi)
	}
	lo, hi = wilsonCI(8, 10)
	if lo <= 0.4 || lo >= 0.8 || hi <= 0.8 || hi > 1 {
		t.Errorf("8/10: got [%v, %v]", lo, hi)
	}
}

func TestPrintPlayerTableMarksFocus(t *testing.T) {
	var buf bytes.Buffer
	players := []model.PlayerRecord{
		{Name: "ZywOo", Team: "Vitality", Event: "major", Roles: model.RoleAssignment{Primary: model.RoleAWP}, Score: model.Score{PIV: 1.734}},
		{Name: "apEX", Team: "Vitality", Event: "major", Roles: model.RoleAssignment{Primary: model.RoleIGL}},
	}
	PrintPlayerTable(&buf, players, "ZywOo")
	out := buf.String()
	for _, want := range []string{"ZywOo", "apEX", "AWP", "IGL", "1.734", ">"} {
		if !strings.Contains(out, want) {
			t.Errorf("player table missing %q:\n%s", want, out)
		}
	}
}

func TestPrintWeightTable(t *testing.T) {
	var buf bytes.Buffer
	PrintWeightTable(&buf, model.WeightTable{
		Meta:    model.WeightMeta{Version: "default", Source: model.WeightsDefault},
		Weights: map[model.Feature]float64{model.FeaturePIV: 0.75, model.FeatureKD: 0.25},
	})
	out := buf.String()
	if !strings.Contains(out, "default") || strings.Index(out, "piv") > strings.Index(out, "kd") {
		t.Errorf("weights should list piv before kd:\n%s", out)
	}
}

func TestPrintAccuracyAndDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	PrintAccuracy(&buf, 0, 0)
	if !strings.Contains(buf.String(), "no head-to-head") {
		t.Errorf("no ground truth: got %q", buf.String())
	}
	buf.Reset()
	PrintAccuracy(&buf, 4, 3)
	if !strings.Contains(buf.String(), "3/4") || !strings.Contains(buf.String(), "VERY_LOW") {
		t.Errorf("accuracy line: got %q", buf.String())
	}

	buf.Reset()
	PrintDiagnostics(&buf, nil)
	if !strings.Contains(buf.String(), "No degraded-mode") {
		t.Errorf("empty diagnostics: got %q", buf.String())
	}
	buf.Reset()
	PrintDiagnostics(&buf, []diag.Count{{Stage: diag.StageWeights, Kind: "insufficient_sample", Count: 1}})
	if !strings.Contains(buf.String(), "insufficient_sample") {
		t.Errorf("diagnostics table: got %q", buf.String())
	}
}

func TestPrintRawEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintRaw(&buf, []string{"a"}, nil)
	if strings.TrimSpace(buf.String()) != "(no rows)" {
		t.Errorf("got %q", buf.String())
	}
}
