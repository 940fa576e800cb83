// Package cluster groups well sites into survey units by proximity.
//
// The algorithm is DBSCAN over raw (latitude, longitude) coordinates with the
// neighbourhood radius converted from kilometers to degrees:
//
//	eps = radius_km / 111
//
// A site is a core site when at least MinSamples sites (itself included) lie
// within eps of it. Core sites within eps of each other share a cluster, and
// non-core sites within eps of a core site join that core site's cluster.
// Everything else is noise and is never surveyed in cluster mode.
//
// Clustering is deterministic. Sites are visited in portfolio order, neighbours
// are expanded in ascending index order, and a border site reachable from two
// clusters joins the one discovered first.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/rewired-gh/ldarsim/internal/geodesy"
	"github.com/rewired-gh/ldarsim/internal/logger"
	"github.com/rewired-gh/ldarsim/internal/models"
)

// Default clustering parameters (facility pad scale).
const (
	DefaultRadiusKm   = 0.8
	DefaultMinSamples = 2
)

// ErrInvalidMinSamples is returned when MinSamples is less than 1.
var ErrInvalidMinSamples = errors.New("min samples must be at least 1")

// Params holds the clustering configuration.
type Params struct {
	RadiusKm   float64
	MinSamples int
}

// DefaultParams returns the default clustering configuration.
func DefaultParams() Params {
	return Params{RadiusKm: DefaultRadiusKm, MinSamples: DefaultMinSamples}
}

// Validate checks the parameters without clamping them.
func (p Params) Validate() error {
	if _, err := geodesy.KmToDegrees(p.RadiusKm); err != nil {
		return err
	}
	if p.MinSamples < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinSamples, p.MinSamples)
	}
	return nil
}

// Clusterer runs DBSCAN with a fixed parameter set. A new parameter set
// needs a new Clusterer; results are never updated incrementally.
type Clusterer struct {
	params Params
	eps    float64
}

// New creates a Clusterer after validating params.
func New(params Params) (*Clusterer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	eps, _ := geodesy.KmToDegrees(params.RadiusKm)
	return &Clusterer{params: params, eps: eps}, nil
}

// Params returns the parameters the clusterer was built with.
func (c *Clusterer) Params() Params {
	return c.params
}

// Cluster partitions the portfolio into clusters and noise.
// An empty or nil portfolio yields zero clusters and zero noise.
func (c *Clusterer) Cluster(portfolio *models.Portfolio) *models.Clustering {
	n := portfolio.Len()
	result := &models.Clustering{
		RadiusKm:   c.params.RadiusKm,
		MinSamples: c.params.MinSamples,
		Labels:     make([]int, n),
		Clusters:   []models.Cluster{},
	}
	if n == 0 {
		return result
	}

	points := make([]orb.Point, n)
	for i := range portfolio.Sites {
		points[i] = portfolio.Sites[i].Location
	}

	idx := newGridIndex(points, c.eps)
	neighborhoods := make([][]int, n)
	core := make([]bool, n)
	for i := range points {
		neighborhoods[i] = idx.within(i)
		core[i] = len(neighborhoods[i]) >= c.params.MinSamples
	}

	labels := result.Labels
	for i := range labels {
		labels[i] = models.NoiseLabel
	}

	next := 0
	var stack []int
	for i := 0; i < n; i++ {
		if labels[i] != models.NoiseLabel || !core[i] {
			continue
		}
		p := i
		for {
			if labels[p] == models.NoiseLabel {
				labels[p] = next
				if core[p] {
					for _, v := range neighborhoods[p] {
						if labels[v] == models.NoiseLabel {
							stack = append(stack, v)
						}
					}
				}
			}
			if len(stack) == 0 {
				break
			}
			p = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		next++
	}

	result.Clusters = buildClusters(points, labels, next)
	for _, l := range labels {
		if l == models.NoiseLabel {
			result.NoiseCount++
		}
	}

	logger.Debug("Cluster: sites=%d clusters=%d noise=%d eps=%.6f deg min_samples=%d",
		n, len(result.Clusters), result.NoiseCount, c.eps, c.params.MinSamples)

	return result
}

// buildClusters collects members in ascending site order and computes the
// simple (not geodesically corrected) centroid of each cluster.
func buildClusters(points []orb.Point, labels []int, count int) []models.Cluster {
	clusters := make([]models.Cluster, count)
	for id := range clusters {
		clusters[id].ID = id
	}
	for i, l := range labels {
		if l == models.NoiseLabel {
			continue
		}
		clusters[l].Members = append(clusters[l].Members, i)
	}

	for id := range clusters {
		cl := &clusters[id]
		mp := make(orb.MultiPoint, len(cl.Members))
		var sumLat, sumLon float64
		for j, m := range cl.Members {
			mp[j] = points[m]
			sumLon += points[m].Lon()
			sumLat += points[m].Lat()
		}
		size := float64(len(cl.Members))
		cl.Centroid = orb.Point{sumLon / size, sumLat / size}
		cl.Bound = mp.Bound()
	}
	return clusters
}

type cellKey struct {
	row, col int64
}

// gridIndex buckets points into square cells of side eps so a radius query
// only inspects the 3x3 block of cells around a point.
type gridIndex struct {
	points []orb.Point
	eps    float64
	eps2   float64
	cells  map[cellKey][]int
}

func newGridIndex(points []orb.Point, eps float64) *gridIndex {
	g := &gridIndex{
		points: points,
		eps:    eps,
		eps2:   eps * eps,
		cells:  make(map[cellKey][]int),
	}
	for i, p := range points {
		k := g.key(p)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *gridIndex) key(p orb.Point) cellKey {
	return cellKey{
		row: int64(math.Floor(p.Lat() / g.eps)),
		col: int64(math.Floor(p.Lon() / g.eps)),
	}
}

// within returns the indices of all points within eps of point i, including
// i itself, in ascending order.
func (g *gridIndex) within(i int) []int {
	p := g.points[i]
	k := g.key(p)
	var out []int
	for dr := int64(-1); dr <= 1; dr++ {
		for dc := int64(-1); dc <= 1; dc++ {
			for _, j := range g.cells[cellKey{k.row + dr, k.col + dc}] {
				q := g.points[j]
				dLat := p.Lat() - q.Lat()
				dLon := p.Lon() - q.Lon()
				if dLat*dLat+dLon*dLon <= g.eps2 {
					out = append(out, j)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}
