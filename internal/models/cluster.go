package models

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// NoiseLabel is the cluster label given to sites that belong to no cluster.
const NoiseLabel = -1

// Cluster is a group of nearby sites surveyed as one unit.
// Members are indices into the portfolio the cluster was derived from;
// the cluster does not own the sites.
type Cluster struct {
	ID       int       `json:"id"`
	Members  []int     `json:"members"`
	Centroid orb.Point `json:"centroid"` // arithmetic mean of member coordinates
	Bound    orb.Bound `json:"bound"`
}

// Size returns the number of member sites.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// Clustering is the result of one clustering pass over a portfolio.
// Cluster IDs are only meaningful within a single Clustering.
type Clustering struct {
	RadiusKm   float64   `json:"radius_km"`
	MinSamples int       `json:"min_samples"`
	Labels     []int     `json:"labels"` // per site; NoiseLabel for noise
	Clusters   []Cluster `json:"clusters"`
	NoiseCount int       `json:"noise_count"`
}

// ClusteredSites returns the number of sites assigned to any cluster.
func (c *Clustering) ClusteredSites() int {
	return len(c.Labels) - c.NoiseCount
}

// MeanClusterSize returns the average number of sites per cluster, or 0
// when there are no clusters.
func (c *Clustering) MeanClusterSize() float64 {
	if len(c.Clusters) == 0 {
		return 0
	}
	return float64(c.ClusteredSites()) / float64(len(c.Clusters))
}

// Summary returns the clustering figures reported for a run.
func (c *Clustering) Summary() ClusteringSummary {
	return ClusteringSummary{
		RadiusKm:        c.RadiusKm,
		MinSamples:      c.MinSamples,
		Clusters:        len(c.Clusters),
		NoiseSites:      c.NoiseCount,
		ClusteredSites:  c.ClusteredSites(),
		MeanClusterSize: c.MeanClusterSize(),
	}
}

// Validate checks that labels and cluster membership agree and that no
// site belongs to more than one cluster.
func (c *Clustering) Validate() error {
	owner := make(map[int]int, len(c.Labels))
	for _, cl := range c.Clusters {
		if len(cl.Members) == 0 {
			return fmt.Errorf("cluster %d has no members", cl.ID)
		}
		for _, m := range cl.Members {
			if m < 0 || m >= len(c.Labels) {
				return fmt.Errorf("cluster %d references site %d out of range", cl.ID, m)
			}
			if prev, dup := owner[m]; dup {
				return fmt.Errorf("site %d assigned to clusters %d and %d", m, prev, cl.ID)
			}
			owner[m] = cl.ID
			if c.Labels[m] != cl.ID {
				return fmt.Errorf("site %d labeled %d but member of cluster %d", m, c.Labels[m], cl.ID)
			}
		}
	}
	noise := 0
	for i, l := range c.Labels {
		if l == NoiseLabel {
			noise++
			continue
		}
		if _, ok := owner[i]; !ok {
			return fmt.Errorf("site %d labeled %d but not listed as a member", i, l)
		}
	}
	if noise != c.NoiseCount {
		return errors.New("noise count does not match noise labels")
	}
	return nil
}

// ClusteringSummary holds the clustering parameters and resulting counts.
type ClusteringSummary struct {
	RadiusKm        float64 `json:"radius_km"`
	MinSamples      int     `json:"min_samples"`
	Clusters        int     `json:"clusters"`
	NoiseSites      int     `json:"noise_sites"`
	ClusteredSites  int     `json:"clustered_sites"`
	MeanClusterSize float64 `json:"mean_cluster_size"`
}
