package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/ldarsim/internal/models"
)

func sampleReport() *models.RunReport {
	return &models.RunReport{
		ID:        "run-1",
		CreatedAt: time.Now().Add(-time.Minute).UTC(),
		Survey:    models.SurveyParams{Mode: models.SurveyModeClusters, Coverage: 0.2, Iterations: 2},
		Events: []models.SurveyEventResult{
			{Index: 0, UnitsSurveyed: 1, SitesSurveyed: 2, EmissionsSampledKgph: 3, EmissionsDetectedKgph: 1, MeanProbability: 0.5},
			{Index: 1, MitigationPct: math.NaN()},
		},
		Summary: models.MonteCarloSummary{
			StdDetectedKgph: math.NaN(),
			CIUpperKgph:     math.Inf(1),
		},
		Strategies: []models.StrategyResult{
			{Strategy: "Status Quo", CostPerKgph: math.Inf(-1)},
		},
	}
}

func TestFinite(t *testing.T) {
	r := sampleReport()
	if n := Finite(r); n != 4 {
		t.Errorf("Finite() replaced %d values, want 4", n)
	}
	if r.Summary.StdDetectedKgph != 0 || r.Summary.CIUpperKgph != 0 {
		t.Errorf("summary not sanitized: %+v", r.Summary)
	}
	if r.Events[1].MitigationPct != 0 || r.Strategies[0].CostPerKgph != 0 {
		t.Error("nested values not sanitized")
	}
	if r.Events[0].EmissionsSampledKgph != 3 {
		t.Error("finite values must be left alone")
	}

	if n := Finite(r); n != 0 {
		t.Errorf("second pass replaced %d values, want 0", n)
	}
	if n := Finite(nil); n != 0 {
		t.Errorf("Finite(nil) = %d, want 0", n)
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.json")

	if err := WriteJSON(path, sampleReport(), DefaultFilePermissions, DefaultDirPermissions); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	for _, bad := range []string{"NaN", "Inf"} {
		if strings.Contains(string(data), bad) {
			t.Errorf("report contains %s", bad)
		}
	}

	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.ID != "run-1" || len(got.Events) != 2 || got.Survey.Mode != models.SurveyModeClusters {
		t.Errorf("unexpected report %+v", got)
	}
}

func TestWriteJSON_Nil(t *testing.T) {
	if err := WriteJSON(filepath.Join(t.TempDir(), "r.json"), nil, DefaultFilePermissions, DefaultDirPermissions); err == nil {
		t.Error("Expected error for nil report")
	}
}

func TestReadJSON_Missing(t *testing.T) {
	if _, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
