package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/storage"
	"github.com/rewired-gh/ldarsim/internal/strategy"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printClustering(w io.Writer, p *models.Portfolio, c *models.Clustering, verbose bool) {
	s := c.Summary()
	fmt.Fprintf(w, "Sites:            %d\n", p.Len())
	fmt.Fprintf(w, "Radius:           %.2f km (min samples %d)\n", s.RadiusKm, s.MinSamples)
	fmt.Fprintf(w, "Clusters:         %d\n", s.Clusters)
	fmt.Fprintf(w, "Clustered sites:  %d\n", s.ClusteredSites)
	fmt.Fprintf(w, "Noise sites:      %d\n", s.NoiseSites)
	fmt.Fprintf(w, "Mean size:        %.2f\n", s.MeanClusterSize)

	if !verbose || len(c.Clusters) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "CLUSTER\tSITES\tLON\tLAT\tEMISSIONS (kg/h)")
	for i := range c.Clusters {
		cl := &c.Clusters[i]
		var emissions float64
		for _, m := range cl.Members {
			emissions += p.Sites[m].EmissionRateKgph
		}
		fmt.Fprintf(tw, "%d\t%d\t%.5f\t%.5f\t%.2f\n", cl.ID, cl.Size(), cl.Centroid.Lon(), cl.Centroid.Lat(), emissions)
	}
	tw.Flush()
}

func printEvents(w io.Writer, events []models.SurveyEventResult) {
	tw := newTable(w)
	fmt.Fprintln(tw, "EVENT\tUNITS\tSITES\tDETECTED\tRATE\tSAMPLED (kg/h)\tDETECTED (kg/h)\tMITIGATION\tWIND (m/s)")
	for i := range events {
		e := &events[i]
		wind := fmt.Sprintf("%.2f", e.WindSpeedMs)
		if e.WindDegraded {
			wind += "*"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.0f%%\t%.2f\t%.2f\t%.2f%%\t%s\n",
			e.Index, e.UnitsSurveyed, e.SitesSurveyed, e.SitesDetected, e.DetectionRate()*100,
			e.EmissionsSampledKgph, e.EmissionsDetectedKgph, e.MitigationPct, wind)
	}
	tw.Flush()
}

func printStrategies(w io.Writer, results []models.StrategyResult, yield, total float64) {
	fmt.Fprintf(w, "Yield: %.2f kg/h per 1%% surveyed, portfolio total %.1f kg/h\n\n", yield, total)
	tw := newTable(w)
	fmt.Fprintln(tw, "STRATEGY\tCOVERAGE\tYEARS\tDAYS/YR\tANNUAL (kg/h)\tANNUAL %\tCUMULATIVE (kg/h)\tCUMULATIVE %\tCOST/YR (USD)\tUSD PER kg/h")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.0f%%\t%d\t%.1f\t%.1f\t%.2f\t%.1f\t%.2f\t%.0f\t%.2f\n",
			r.Strategy, r.AnnualCoveragePct, r.Years, r.DaysPerYear,
			r.AnnualDetectedKgph, r.AnnualMitigationPct,
			r.CumulativeDetectedKgph, r.CumulativeMitigationPct,
			r.AnnualCostUSD, r.CostPerKgph)
	}
	tw.Flush()

	if best, ok := strategy.Best(results); ok {
		fmt.Fprintf(w, "\nHighest cumulative mitigation: %s (%.2f%%)\n", best.Strategy, best.CumulativeMitigationPct)
	}
}

func printReport(w io.Writer, r *models.RunReport, showEvents bool) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.ID, r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Portfolio:  %d sites, %.1f kg/h total\n", r.Portfolio.Sites, r.Portfolio.TotalEmissionsKgph)
	fmt.Fprintf(w, "Clusters:   %d (%d noise sites, radius %.2f km)\n",
		r.Clustering.Clusters, r.Clustering.NoiseSites, r.Clustering.RadiusKm)
	fmt.Fprintf(w, "Survey:     mode=%s coverage=%.0f%% iterations=%d seed=%d\n",
		r.Survey.Mode, r.Survey.Coverage*100, r.Survey.Iterations, r.Survey.Seed)
	if r.Wind.Degraded {
		fmt.Fprintf(w, "Wind:       degraded, uniform %.1f-%.1f m/s (%s)\n", r.Wind.MinMs, r.Wind.MaxMs, r.Wind.Reason)
	} else {
		fmt.Fprintf(w, "Wind:       %d of %d observations flyable (%.0f%%)\n",
			r.Wind.FlyableSamples, r.Wind.SeriesSamples, r.Wind.FlyableFraction*100)
	}

	s := r.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Detected:   %.2f ± %.2f kg/h per event (95%% interval %.2f-%.2f)\n",
		s.MeanDetectedKgph, s.StdDetectedKgph, s.CILowerKgph, s.CIUpperKgph)
	fmt.Fprintf(w, "Mitigation: %.2f%% per event, %.2f%% over all events\n", s.MeanMitigationPct, s.TotalMitigationPct)
	fmt.Fprintf(w, "Yield:      %.2f kg/h per 1%% of units surveyed\n", s.YieldPerPercentKgph)

	p := r.Schedule
	fmt.Fprintf(w, "Schedule:   %d units per period, %.1f flight days needed, %.1f available\n",
		p.UnitsPerPeriod, p.FlightDaysPerPeriod, p.DaysAvailablePerPeriod)
	fmt.Fprintf(w, "Travel:     %.1f min for one pass over all %d units\n", p.SweepTravelMinutes, p.Units)

	if showEvents && len(r.Events) > 0 {
		fmt.Fprintln(w)
		printEvents(w, r.Events)
	}
	if len(r.Strategies) > 0 {
		fmt.Fprintln(w)
		printStrategies(w, r.Strategies, s.YieldPerPercentKgph, s.PortfolioTotalKgph)
	}
}

func printHistory(w io.Writer, records []storage.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCREATED\tMODE\tCOVERAGE\tEVENTS\tSITES\tCLUSTERS\tMEAN DETECTED (kg/h)\tYIELD\tWIND")
	for _, rec := range records {
		wind := "ok"
		if rec.WindDegraded {
			wind = "degraded"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%d\t%d\t%d\t%.2f\t%.2f\t%s\n",
			rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Mode,
			rec.Coverage*100, rec.Iterations, rec.Sites, rec.Clusters,
			rec.MeanDetectedKgph, rec.YieldPerPercentKgph, wind)
	}
	tw.Flush()
}
