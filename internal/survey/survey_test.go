package survey

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rewired-gh/ldarsim/internal/cluster"
	"github.com/rewired-gh/ldarsim/internal/detection"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/wind"
)

func testPortfolio(t *testing.T, n int) *models.Portfolio {
	t.Helper()
	rng := rand.New(rand.NewPCG(42, 0))
	sites := make([]models.Site, n)
	for i := range sites {
		sites[i] = models.Site{
			Location:         orb.Point{-78.0 + rng.Float64()*0.1, 41.0 + rng.Float64()*0.1},
			EmissionRateKgph: rng.ExpFloat64() * 2,
		}
	}
	p, err := models.NewPortfolio(sites)
	if err != nil {
		t.Fatalf("failed to build portfolio: %v", err)
	}
	return p
}

func testSimulator(t *testing.T, p *models.Portfolio, units []Unit, series []float64) *Simulator {
	t.Helper()
	model, err := detection.NewModel(detection.DefaultParams())
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	sampler, err := wind.NewSampler(series, wind.DefaultBounds())
	if err != nil {
		t.Fatalf("failed to create sampler: %v", err)
	}
	sim, err := NewSimulator(p, units, model, sampler)
	if err != nil {
		t.Fatalf("failed to create simulator: %v", err)
	}
	return sim
}

func TestSelectUnits(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	tests := []struct {
		name     string
		n        int
		coverage float64
		wantLen  int
		wantErr  error
	}{
		{"twenty percent", 50, 0.2, 10, nil},
		{"rounds down", 9, 0.5, 4, nil},
		{"representation error", 100, 0.29, 29, nil},
		{"too few units", 3, 0.2, 0, nil},
		{"empty", 0, 0.5, 0, nil},
		{"full", 7, 1, 7, nil},
		{"zero coverage", 10, 0, 0, ErrInvalidCoverage},
		{"over one", 10, 1.5, 0, ErrInvalidCoverage},
		{"nan", 10, math.NaN(), 0, ErrInvalidCoverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectUnits(rng, tt.n, tt.coverage)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SelectUnits() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(got) != tt.wantLen {
				t.Errorf("SelectUnits() returned %d units, want %d", len(got), tt.wantLen)
			}
			seen := map[int]bool{}
			for i, u := range got {
				if u < 0 || u >= tt.n {
					t.Errorf("index %d out of range", u)
				}
				if seen[u] {
					t.Errorf("index %d selected twice", u)
				}
				seen[u] = true
				if i > 0 && got[i-1] >= u {
					t.Errorf("selection not sorted: %v", got)
				}
			}
		})
	}
}

func TestSelectUnits_FullCoverageInOrder(t *testing.T) {
	got, err := SelectUnits(rand.New(rand.NewPCG(0, 0)), 5, 1)
	if err != nil {
		t.Fatalf("SelectUnits failed: %v", err)
	}
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3, 4}) {
		t.Errorf("SelectUnits() = %v, want all units in order", got)
	}
}

func TestSelectUnits_Unbiased(t *testing.T) {
	// every unit should be drawn roughly equally often
	rng := rand.New(rand.NewPCG(8, 8))
	counts := make([]int, 10)
	const rounds = 20000
	for r := 0; r < rounds; r++ {
		sel, _ := SelectUnits(rng, 10, 0.3)
		for _, u := range sel {
			counts[u]++
		}
	}
	want := float64(rounds) * 0.3
	for u, c := range counts {
		if math.Abs(float64(c)-want)/want > 0.05 {
			t.Errorf("unit %d drawn %d times, want about %.0f", u, c, want)
		}
	}
}

func TestNewSimulator_OverlappingUnits(t *testing.T) {
	p := testPortfolio(t, 4)
	units := []Unit{{ID: 0, Members: []int{0, 1}}, {ID: 1, Members: []int{1, 2}}}

	model, _ := detection.NewModel(detection.DefaultParams())
	sampler, _ := wind.NewSampler(nil, wind.DefaultBounds())
	_, err := NewSimulator(p, units, model, sampler)
	if !errors.Is(err, ErrOverlappingUnits) {
		t.Errorf("NewSimulator() error = %v, want ErrOverlappingUnits", err)
	}

	_, err = NewSimulator(p, []Unit{{ID: 0, Members: []int{9}}}, model, sampler)
	if err == nil {
		t.Error("Expected error for member outside portfolio")
	}
}

func TestRunEvent_Invariants(t *testing.T) {
	p := testPortfolio(t, 200)
	sim := testSimulator(t, p, SiteUnits(p), []float64{2, 3, 4, 5})

	for i := 0; i < 100; i++ {
		res, outcomes, err := sim.RunEvent(EventRand(7, i), i, 0.25)
		if err != nil {
			t.Fatalf("RunEvent failed: %v", err)
		}
		if err := res.Validate(); err != nil {
			t.Fatalf("event %d invalid: %v", i, err)
		}
		if res.UnitsSurveyed != 50 || res.SitesSurveyed != 50 {
			t.Errorf("Expected 50 units and sites, got %d/%d", res.UnitsSurveyed, res.SitesSurveyed)
		}
		if len(outcomes) != res.SitesSurveyed {
			t.Errorf("Expected %d outcomes, got %d", res.SitesSurveyed, len(outcomes))
		}

		seen := map[int]bool{}
		detected := 0
		for _, o := range outcomes {
			if seen[o.SiteIndex] {
				t.Fatalf("site %d counted twice", o.SiteIndex)
			}
			seen[o.SiteIndex] = true
			if o.Probability < 0 || o.Probability > 1 {
				t.Fatalf("probability %v out of range", o.Probability)
			}
			if o.Detected {
				detected++
			}
		}
		if detected != res.SitesDetected {
			t.Errorf("outcomes report %d detections, result %d", detected, res.SitesDetected)
		}
		if res.WindSpeedMs < 2 || res.WindSpeedMs > 5 || res.WindDegraded {
			t.Errorf("unexpected wind %+v", res)
		}
	}
}

func TestRunEvent_EmptyPortfolio(t *testing.T) {
	sim := testSimulator(t, &models.Portfolio{}, nil, nil)

	res, outcomes, err := sim.RunEvent(EventRand(1, 0), 0, 0.5)
	if err != nil {
		t.Fatalf("RunEvent failed: %v", err)
	}
	if res.UnitsSurveyed != 0 || res.SitesSurveyed != 0 || res.EmissionsSampledKgph != 0 ||
		res.EmissionsDetectedKgph != 0 || res.MeanProbability != 0 || res.MitigationPct != 0 {
		t.Errorf("Expected zero-filled result, got %+v", res)
	}
	if len(outcomes) != 0 {
		t.Errorf("Expected no outcomes, got %d", len(outcomes))
	}
	if !res.WindDegraded {
		t.Error("nil wind series should mark the event as degraded")
	}
}

func TestRunEvent_ZeroEmissionsNeverDetected(t *testing.T) {
	sites := []models.Site{
		{Location: orb.Point{-78, 41}, EmissionRateKgph: 0},
		{Location: orb.Point{-78, 41.001}, EmissionRateKgph: 0},
	}
	p, _ := models.NewPortfolio(sites)
	sim := testSimulator(t, p, SiteUnits(p), nil)

	for i := 0; i < 50; i++ {
		res, _, err := sim.RunEvent(EventRand(3, i), i, 1)
		if err != nil {
			t.Fatalf("RunEvent failed: %v", err)
		}
		if res.SitesDetected != 0 || res.MitigationPct != 0 {
			t.Fatalf("zero-emission sites detected: %+v", res)
		}
	}
}

func TestRunEvent_ClusterModeSkipsNoise(t *testing.T) {
	p, _ := models.NewPortfolio([]models.Site{
		{Location: orb.Point{-78.0, 41.0}, EmissionRateKgph: 5},
		{Location: orb.Point{-78.0, 41.0009}, EmissionRateKgph: 5},
		{Location: orb.Point{-77.0, 40.0}, EmissionRateKgph: 100},
	})
	c, _ := cluster.New(cluster.DefaultParams())
	units, err := BuildUnits(models.SurveyModeClusters, p, c.Cluster(p))
	if err != nil {
		t.Fatalf("BuildUnits failed: %v", err)
	}
	sim := testSimulator(t, p, units, []float64{3})

	res, _, err := sim.RunEvent(EventRand(0, 0), 0, 1)
	if err != nil {
		t.Fatalf("RunEvent failed: %v", err)
	}
	if res.UnitsSurveyed != 1 || res.SitesSurveyed != 2 || res.EmissionsSampledKgph != 10 {
		t.Errorf("noise site should not be surveyed, got %+v", res)
	}
	if want := res.EmissionsDetectedKgph / 110 * 100; math.Abs(res.MitigationPct-want) > 1e-12 {
		t.Errorf("MitigationPct = %f, want %f", res.MitigationPct, want)
	}
}

func TestUnitCentroid(t *testing.T) {
	p, err := models.NewPortfolio([]models.Site{
		{Location: orb.Point{-78, 41}, EmissionRateKgph: 1},
		{Location: orb.Point{-77, 43}, EmissionRateKgph: 1},
		{Location: orb.Point{-70, 30}, EmissionRateKgph: 1},
	})
	if err != nil {
		t.Fatalf("NewPortfolio failed: %v", err)
	}

	tests := []struct {
		name string
		unit Unit
		want orb.Point
	}{
		{"pair", Unit{Members: []int{0, 1}}, orb.Point{-77.5, 42}},
		{"single", Unit{Members: []int{2}}, orb.Point{-70, 30}},
		{"empty", Unit{}, orb.Point{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.unit.Centroid(p); got != tt.want {
				t.Errorf("Centroid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildUnits_Errors(t *testing.T) {
	p := testPortfolio(t, 3)
	if _, err := BuildUnits(models.SurveyModeClusters, p, nil); err == nil {
		t.Error("Expected error for cluster mode without clustering")
	}
	if _, err := BuildUnits(models.SurveyModeClusters, p, &models.Clustering{Labels: []int{0}}); err == nil {
		t.Error("Expected error for mismatched clustering")
	}
	if _, err := BuildUnits("grid", p, nil); err == nil {
		t.Error("Expected error for unknown mode")
	}
	units, err := BuildUnits(models.SurveyModeSites, p, nil)
	if err != nil || len(units) != 3 {
		t.Errorf("BuildUnits(sites) = %v, %v", units, err)
	}
}

func TestMonteCarlo_DeterministicAcrossWorkers(t *testing.T) {
	p := testPortfolio(t, 300)
	sim := testSimulator(t, p, SiteUnits(p), []float64{1.5, 2, 3.2, 4.8, 5.5})

	var first []models.SurveyEventResult
	for _, workers := range []int{1, 2, 8} {
		got, err := sim.MonteCarlo(context.Background(), BatchParams{
			Coverage: 0.2, Iterations: 40, Seed: 2024, Workers: workers,
		})
		if err != nil {
			t.Fatalf("MonteCarlo failed: %v", err)
		}
		if len(got) != 40 {
			t.Fatalf("Expected 40 events, got %d", len(got))
		}
		for i, e := range got {
			if e.Index != i {
				t.Fatalf("event %d has index %d", i, e.Index)
			}
		}
		if first == nil {
			first = got
			continue
		}
		if !reflect.DeepEqual(first, got) {
			t.Errorf("workers=%d produced different results", workers)
		}
	}

	other, _ := sim.MonteCarlo(context.Background(), BatchParams{Coverage: 0.2, Iterations: 40, Seed: 2025})
	if reflect.DeepEqual(first, other) {
		t.Error("different seeds should produce different batches")
	}
}

func TestMonteCarlo_InvalidParams(t *testing.T) {
	p := testPortfolio(t, 10)
	sim := testSimulator(t, p, SiteUnits(p), nil)

	if _, err := sim.MonteCarlo(context.Background(), BatchParams{Coverage: 0, Iterations: 5}); !errors.Is(err, ErrInvalidCoverage) {
		t.Errorf("Expected ErrInvalidCoverage, got %v", err)
	}
	if _, err := sim.MonteCarlo(context.Background(), BatchParams{Coverage: 0.5, Iterations: 0}); err == nil {
		t.Error("Expected error for zero iterations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.MonteCarlo(ctx, BatchParams{Coverage: 0.5, Iterations: 5}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	events := []models.SurveyEventResult{
		{EmissionsDetectedKgph: 10, EmissionsSampledKgph: 20, MeanProbability: 0.4},
		{EmissionsDetectedKgph: 20, EmissionsSampledKgph: 30, MeanProbability: 0.6, WindDegraded: true},
		{EmissionsDetectedKgph: 30, EmissionsSampledKgph: 40, MeanProbability: 0.5},
	}
	s := Summarize(events, 0.2, 200)

	if s.Events != 3 || s.DegradedWindEvents != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.MeanDetectedKgph != 20 || math.Abs(s.StdDetectedKgph-math.Sqrt(200.0/3)) > 1e-9 {
		t.Errorf("mean/std = %f/%f, want 20/%f", s.MeanDetectedKgph, s.StdDetectedKgph, math.Sqrt(200.0/3))
	}
	if s.MinDetectedKgph != 10 || s.MaxDetectedKgph != 30 {
		t.Errorf("min/max = %f/%f, want 10/30", s.MinDetectedKgph, s.MaxDetectedKgph)
	}
	if s.CILowerKgph < 10 || s.CIUpperKgph > 30 || s.CILowerKgph > s.CIUpperKgph {
		t.Errorf("interval [%f, %f] outside data range", s.CILowerKgph, s.CIUpperKgph)
	}
	if s.TotalDetectedKgph != 60 || s.TotalMitigationPct != 30 {
		t.Errorf("totals = %f/%f, want 60/30", s.TotalDetectedKgph, s.TotalMitigationPct)
	}
	if s.MeanMitigationPct != 10 {
		t.Errorf("MeanMitigationPct = %f, want 10", s.MeanMitigationPct)
	}
	if s.YieldPerPercentKgph != 1 {
		t.Errorf("YieldPerPercentKgph = %f, want 1", s.YieldPerPercentKgph)
	}
}

func TestSummarize_PopulationStatistics(t *testing.T) {
	var events []models.SurveyEventResult
	for _, v := range []float64{4700, 4000, 5200, 4600, 4500} {
		events = append(events, models.SurveyEventResult{EmissionsDetectedKgph: v, EmissionsSampledKgph: v})
	}
	s := Summarize(events, 0.2, 55389.2)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"mean", s.MeanDetectedKgph, 4600},
		{"std", s.StdDetectedKgph, math.Sqrt(148000)},
		{"lower bound", s.CILowerKgph, 4050},
		{"upper bound", s.CIUpperKgph, 5150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-6 {
				t.Errorf("%s = %f, want %f", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestRankQuantile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{7}, 0.975, 7},
		{"median of even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"minimum", []float64{1, 2, 3}, 0, 1},
		{"maximum", []float64{1, 2, 3}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rankQuantile(tt.sorted, tt.p); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("rankQuantile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestSummarize_Degenerate(t *testing.T) {
	empty := Summarize(nil, 0.2, 100)
	if empty.Events != 0 || empty.MeanDetectedKgph != 0 || empty.CILowerKgph != 0 {
		t.Errorf("Expected zero summary, got %+v", empty)
	}

	single := Summarize([]models.SurveyEventResult{{EmissionsDetectedKgph: 5}}, 0.2, 0)
	if single.StdDetectedKgph != 0 || single.MeanDetectedKgph != 5 {
		t.Errorf("single event summary %+v", single)
	}
	if single.MeanMitigationPct != 0 || single.TotalMitigationPct != 0 {
		t.Errorf("zero portfolio total must give 0 mitigation, got %+v", single)
	}
	for _, v := range []float64{single.CILowerKgph, single.CIUpperKgph, single.MeanProbability} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("non-finite statistic in %+v", single)
		}
	}
}

func TestYieldPerPercent(t *testing.T) {
	if got := YieldPerPercent(4604, 0.2); math.Abs(got-230.2) > 1e-9 {
		t.Errorf("YieldPerPercent(4604, 0.2) = %f, want 230.2", got)
	}
	if got := YieldPerPercent(100, 0); got != 0 {
		t.Errorf("YieldPerPercent with zero coverage = %f, want 0", got)
	}
}
