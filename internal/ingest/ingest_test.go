package ingest

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rewired-gh/ldarsim/internal/models"
)

func TestReadPortfolio(t *testing.T) {
	in := "id,longitude,latitude,emission_rate_kgph\n" +
		"w-1,-78.10,41.20,0.5\n" +
		"w-2,-78.11,41.21,2.25\n" +
		",-78.12,41.22,0\n"

	p, err := ReadPortfolio(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadPortfolio failed: %v", err)
	}
	if p.Len() != 3 {
		t.Fatalf("Expected 3 sites, got %d", p.Len())
	}
	if p.Sites[0].ID != "w-1" || p.Sites[2].ID != "site-2" {
		t.Errorf("unexpected IDs %q, %q", p.Sites[0].ID, p.Sites[2].ID)
	}
	if p.Sites[1].Lon() != -78.11 || p.Sites[1].Lat() != 41.21 {
		t.Errorf("unexpected location %v", p.Sites[1].Location)
	}
	if math.Abs(p.TotalEmissions()-2.75) > 1e-12 {
		t.Errorf("TotalEmissions() = %f, want 2.75", p.TotalEmissions())
	}
}

func TestReadPortfolio_HeaderVariants(t *testing.T) {
	in := "\ufeff Latitude ,LONGITUDE,Emission_Rate_Kgph\n41.0,-78.0,1\n"
	p, err := ReadPortfolio(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadPortfolio failed: %v", err)
	}
	if p.Sites[0].Lat() != 41.0 || p.Sites[0].Lon() != -78.0 {
		t.Errorf("columns mapped incorrectly: %v", p.Sites[0].Location)
	}
}

func TestReadPortfolio_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"missing emission column", "longitude,latitude,emissions\n-78,41,1\n", ErrMissingColumn},
		{"missing value", "longitude,latitude,emission_rate_kgph\n-78,41,\n", nil},
		{"nan emission", "longitude,latitude,emission_rate_kgph\n-78,41,NaN\n", models.ErrInvalidSite},
		{"negative emission", "longitude,latitude,emission_rate_kgph\n-78,41,-2\n", models.ErrInvalidSite},
		{"bad number", "longitude,latitude,emission_rate_kgph\n-78,abc,1\n", nil},
		{"short row", "longitude,latitude,emission_rate_kgph\n-78,41\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPortfolio(strings.NewReader(tt.in))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadPortfolio() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadPortfolio_Empty(t *testing.T) {
	p, err := ReadPortfolio(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadPortfolio failed: %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Expected empty portfolio, got %d sites", p.Len())
	}
}

func TestReadWindSeries(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []float64
	}{
		{"camel case", "Time,WindSpeed\n1,2.5\n2,3.0\n", []float64{2.5, 3.0}},
		{"snake case", "wind_speed\n4\n5.5\n", []float64{4, 5.5}},
		{"empty", "", []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadWindSeries(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("ReadWindSeries failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestReadWindSeries_BlankCellsAreNaN(t *testing.T) {
	got, err := ReadWindSeries(strings.NewReader("WindSpeed\n3\n\nx\n"))
	if err != nil {
		t.Fatalf("ReadWindSeries failed: %v", err)
	}
	// csv skips the empty line, "x" becomes NaN
	if len(got) != 2 || got[0] != 3 || !math.IsNaN(got[1]) {
		t.Errorf("unexpected series %v", got)
	}
}

func TestReadWindSeries_MissingColumn(t *testing.T) {
	_, err := ReadWindSeries(strings.NewReader("speed\n3\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadWindSeries(t *testing.T) {
	if got := LoadWindSeries(""); got != nil {
		t.Errorf("empty path should give nil series, got %v", got)
	}
	if got := LoadWindSeries(filepath.Join(t.TempDir(), "missing.csv")); got != nil {
		t.Errorf("missing file should give nil series, got %v", got)
	}

	path := filepath.Join(t.TempDir(), "wind.csv")
	if err := os.WriteFile(path, []byte("WindSpeed\n2\n7\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	got := LoadWindSeries(path)
	if len(got) != 2 || got[0] != 2 || got[1] != 7 {
		t.Errorf("LoadWindSeries() = %v", got)
	}
}

func TestLoadPortfolio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.csv")
	if err := os.WriteFile(path, []byte("longitude,latitude,emission_rate_kgph\n-78,41,1.5\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	p, err := LoadPortfolio(path)
	if err != nil {
		t.Fatalf("LoadPortfolio failed: %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Expected 1 site, got %d", p.Len())
	}

	if _, err := LoadPortfolio(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}
