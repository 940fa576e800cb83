// Package ingest reads normalized input tables.
//
// Portfolio files must carry the columns longitude, latitude and
// emission_rate_kgph, plus an optional id. Wind files carry one wind-speed
// column named WindSpeed or wind_speed. Column names are matched exactly
// (after trimming and case folding); nothing is guessed.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rewired-gh/ldarsim/internal/logger"
	"github.com/rewired-gh/ldarsim/internal/models"
)

// Portfolio column names.
const (
	ColumnID        = "id"
	ColumnLongitude = "longitude"
	ColumnLatitude  = "latitude"
	ColumnEmission  = "emission_rate_kgph"
)

// WindColumns are the accepted wind-speed column names.
var WindColumns = []string{"windspeed", "wind_speed"}

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("required column missing")

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

// ReadPortfolio parses a portfolio table. Any missing or non-numeric
// coordinate or emission value fails the whole load.
func ReadPortfolio(r io.Reader) (*models.Portfolio, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewPortfolio(nil)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := headerIndex(header)
	for _, col := range []string{ColumnLongitude, ColumnLatitude, ColumnEmission} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	idCol, hasID := idx[ColumnID]

	var sites []models.Site
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lon, err := parseField(rec, idx[ColumnLongitude])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColumnLongitude, err)
		}
		lat, err := parseField(rec, idx[ColumnLatitude])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColumnLatitude, err)
		}
		emission, err := parseField(rec, idx[ColumnEmission])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, ColumnEmission, err)
		}

		site := models.Site{Location: orb.Point{lon, lat}, EmissionRateKgph: emission}
		if hasID && idCol < len(rec) {
			site.ID = strings.TrimSpace(rec[idCol])
		}
		sites = append(sites, site)
	}

	p, err := models.NewPortfolio(sites)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded portfolio: %d sites, %.1f kg/h total", p.Len(), p.TotalEmissions())
	return p, nil
}

// ReadWindSeries parses a wind-speed column. Blank or unparsable cells are
// kept as NaN so the sampler can count them as invalid observations.
func ReadWindSeries(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []float64{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := headerIndex(header)
	col := -1
	for _, name := range WindColumns {
		if i, ok := idx[name]; ok {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: one of %v", ErrMissingColumn, WindColumns)
	}

	series := []float64{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		v, err := parseField(rec, col)
		if err != nil {
			v = math.NaN()
		}
		series = append(series, v)
	}
	return series, nil
}

// LoadPortfolio opens path and reads a portfolio from it.
func LoadPortfolio(path string) (*models.Portfolio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open portfolio: %w", err)
	}
	defer f.Close()
	return ReadPortfolio(f)
}

// LoadWindSeries reads the wind series at path. An empty path or an
// unreadable file yields a nil series and a logged warning, never an error:
// the sampler then falls back to its uniform model.
func LoadWindSeries(path string) []float64 {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Wind series unavailable: %v", err)
		return nil
	}
	defer f.Close()

	series, err := ReadWindSeries(f)
	if err != nil {
		logger.Warn("Wind series unreadable (%s): %v", path, err)
		return nil
	}
	logger.Debug("Loaded wind series: %d observations", len(series))
	return series
}

func parseField(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, errors.New("missing value")
	}
	s := strings.TrimSpace(rec[i])
	if s == "" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
