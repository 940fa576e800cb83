// Package config loads ldarsim configuration from a YAML file, LDARSIM_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rewired-gh/ldarsim/internal/cluster"
	"github.com/rewired-gh/ldarsim/internal/detection"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/schedule"
	"github.com/rewired-gh/ldarsim/internal/strategy"
	"github.com/rewired-gh/ldarsim/internal/survey"
	"github.com/rewired-gh/ldarsim/internal/wind"
)

// EnvPrefix prefixes environment overrides, e.g. LDARSIM_SURVEY_COVERAGE.
const EnvPrefix = "LDARSIM"

// Config represents the complete application configuration
type Config struct {
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Wind       WindConfig       `mapstructure:"wind"`
	Survey     SurveyConfig     `mapstructure:"survey"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Input      InputConfig      `mapstructure:"input"`
	Output     OutputConfig     `mapstructure:"output"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ClusteringConfig holds the DBSCAN parameters
type ClusteringConfig struct {
	RadiusKm   float64 `mapstructure:"radius_km"`
	MinSamples int     `mapstructure:"min_samples"`
}

// DetectionConfig holds the detection-curve calibration
type DetectionConfig struct {
	PODThresholdKgph float64 `mapstructure:"pod_threshold_kgph"`
	Steepness        float64 `mapstructure:"steepness"`
	BaselineWindMs   float64 `mapstructure:"baseline_wind_ms"`
	WindExponent     float64 `mapstructure:"wind_exponent"`
}

// WindConfig holds the flyable envelope and the optional wind series
type WindConfig struct {
	MinMs      float64 `mapstructure:"min_ms"`
	MaxMs      float64 `mapstructure:"max_ms"`
	SeriesPath string  `mapstructure:"series_path"`
}

// SurveyConfig holds the Monte Carlo settings
type SurveyConfig struct {
	Mode           string  `mapstructure:"mode"`
	Coverage       float64 `mapstructure:"coverage"`
	Iterations     int     `mapstructure:"iterations"`
	Seed           uint64  `mapstructure:"seed"` // 0 picks a time-based seed
	Workers        int     `mapstructure:"workers"`
	PeriodsPerYear int     `mapstructure:"periods_per_year"`
}

// ScheduleConfig holds the flight-time constants
type ScheduleConfig struct {
	BaselineMinutesPerUnit float64 `mapstructure:"baseline_minutes_per_unit"`
	MinutesPerSite         float64 `mapstructure:"minutes_per_site"`
	FlightSpeedKmh         float64 `mapstructure:"flight_speed_kmh"`
	FlightHoursPerDay      float64 `mapstructure:"flight_hours_per_day"`
	DaysAvailablePerYear   float64 `mapstructure:"days_available_per_year"`
}

// StrategyConfig holds the policy list and cost constants
type StrategyConfig struct {
	ReferenceCoveragePct   float64         `mapstructure:"reference_coverage_pct"`
	DaysPerReferenceSurvey float64         `mapstructure:"days_per_reference_survey"`
	CostPerReferenceSurvey float64         `mapstructure:"cost_per_reference_survey"`
	Policies               []models.Policy `mapstructure:"policies"`
}

// InputConfig locates the portfolio table
type InputConfig struct {
	PortfolioPath string `mapstructure:"portfolio_path"`
}

// OutputConfig locates the JSON report; empty disables writing it
type OutputConfig struct {
	ReportPath string `mapstructure:"report_path"`
}

// StorageConfig holds run history configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"radius-km":   "clustering.radius_km",
	"min-samples": "clustering.min_samples",
	"mode":        "survey.mode",
	"coverage":    "survey.coverage",
	"iterations":  "survey.iterations",
	"seed":        "survey.seed",
	"workers":     "survey.workers",
	"portfolio":   "input.portfolio_path",
	"wind":        "wind.series_path",
	"output":      "output.report_path",
	"db":          "storage.db_path",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

// Load reads configuration from file, environment variables and flags.
// An empty path skips the file. flags may be nil; only flags present in
// flagKeys are bound.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("clustering.radius_km", cluster.DefaultRadiusKm)
	v.SetDefault("clustering.min_samples", cluster.DefaultMinSamples)

	v.SetDefault("detection.pod_threshold_kgph", detection.DefaultPODThresholdKgph)
	v.SetDefault("detection.steepness", detection.DefaultSteepness)
	v.SetDefault("detection.baseline_wind_ms", detection.DefaultBaselineWindMs)
	v.SetDefault("detection.wind_exponent", detection.DefaultWindExponent)

	v.SetDefault("wind.min_ms", wind.DefaultMinMs)
	v.SetDefault("wind.max_ms", wind.DefaultMaxMs)
	v.SetDefault("wind.series_path", "")

	v.SetDefault("survey.mode", string(models.SurveyModeClusters))
	v.SetDefault("survey.coverage", 0.20)
	v.SetDefault("survey.iterations", 5)
	v.SetDefault("survey.seed", 0)
	v.SetDefault("survey.workers", 0)
	v.SetDefault("survey.periods_per_year", 4)

	sp := schedule.DefaultParams()
	v.SetDefault("schedule.baseline_minutes_per_unit", sp.BaselineMinutesPerUnit)
	v.SetDefault("schedule.minutes_per_site", sp.MinutesPerSite)
	v.SetDefault("schedule.flight_speed_kmh", sp.FlightSpeedKmh)
	v.SetDefault("schedule.flight_hours_per_day", sp.FlightHoursPerDay)
	v.SetDefault("schedule.days_available_per_year", sp.DaysAvailablePerYear)

	sc := strategy.DefaultConstants()
	v.SetDefault("strategy.reference_coverage_pct", sc.ReferenceCoveragePct)
	v.SetDefault("strategy.days_per_reference_survey", sc.DaysPerReferenceSurvey)
	v.SetDefault("strategy.cost_per_reference_survey", sc.CostPerReferenceSurvey)
	policies := make([]map[string]interface{}, 0)
	for _, p := range strategy.DefaultPolicies() {
		policies = append(policies, map[string]interface{}{
			"name":                p.Name,
			"annual_coverage_pct": p.AnnualCoveragePct,
			"years":               p.Years,
		})
	}
	v.SetDefault("strategy.policies", policies)

	v.SetDefault("input.portfolio_path", "")
	v.SetDefault("output.report_path", "")

	v.SetDefault("storage.db_path", "./data/ldarsim.db")
	v.SetDefault("storage.max_runs", 100)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid. Everything that
// would make a run ill-defined is rejected here, before any computation.
func (c *Config) Validate() error {
	if err := c.ClusterParams().Validate(); err != nil {
		return fmt.Errorf("clustering: %w", err)
	}
	if err := c.DetectionParams().Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.WindBounds().Validate(); err != nil {
		return fmt.Errorf("wind: %w", err)
	}

	switch models.SurveyMode(c.Survey.Mode) {
	case models.SurveyModeClusters, models.SurveyModeSites:
	default:
		return fmt.Errorf("survey.mode must be one of: clusters, sites")
	}
	if err := survey.ValidateCoverage(c.Survey.Coverage); err != nil {
		return fmt.Errorf("survey.coverage: %w", err)
	}
	if c.Survey.Iterations < 1 {
		return fmt.Errorf("survey.iterations must be at least 1")
	}
	if c.Survey.Workers < 0 {
		return fmt.Errorf("survey.workers must not be negative")
	}
	if err := c.ScheduleParams().Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	if err := c.StrategyConstants().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if len(c.Strategy.Policies) == 0 {
		return fmt.Errorf("strategy.policies: %w", strategy.ErrNoPolicies)
	}
	for i := range c.Strategy.Policies {
		if err := c.Strategy.Policies[i].Validate(); err != nil {
			return fmt.Errorf("strategy.policies[%d]: %w", i, err)
		}
	}

	if c.Storage.MaxRuns < 0 {
		return fmt.Errorf("storage.max_runs must not be negative")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ClusterParams returns the clustering parameters
func (c *Config) ClusterParams() cluster.Params {
	return cluster.Params{RadiusKm: c.Clustering.RadiusKm, MinSamples: c.Clustering.MinSamples}
}

// DetectionParams returns the detection-curve calibration
func (c *Config) DetectionParams() detection.Params {
	return detection.Params{
		PODThresholdKgph: c.Detection.PODThresholdKgph,
		Steepness:        c.Detection.Steepness,
		BaselineWindMs:   c.Detection.BaselineWindMs,
		WindExponent:     c.Detection.WindExponent,
	}
}

// WindBounds returns the flyable wind envelope
func (c *Config) WindBounds() wind.Bounds {
	return wind.Bounds{MinMs: c.Wind.MinMs, MaxMs: c.Wind.MaxMs}
}

// ScheduleParams returns the flight-time constants
func (c *Config) ScheduleParams() schedule.Params {
	return schedule.Params{
		BaselineMinutesPerUnit: c.Schedule.BaselineMinutesPerUnit,
		MinutesPerSite:         c.Schedule.MinutesPerSite,
		FlightSpeedKmh:         c.Schedule.FlightSpeedKmh,
		FlightHoursPerDay:      c.Schedule.FlightHoursPerDay,
		DaysAvailablePerYear:   c.Schedule.DaysAvailablePerYear,
		PeriodsPerYear:         c.Survey.PeriodsPerYear,
	}
}

// StrategyConstants returns the days and cost constants
func (c *Config) StrategyConstants() strategy.Constants {
	return strategy.Constants{
		ReferenceCoveragePct:   c.Strategy.ReferenceCoveragePct,
		DaysPerReferenceSurvey: c.Strategy.DaysPerReferenceSurvey,
		CostPerReferenceSurvey: c.Strategy.CostPerReferenceSurvey,
	}
}

// Policies returns a copy of the configured policy list
func (c *Config) Policies() []models.Policy {
	return append([]models.Policy(nil), c.Strategy.Policies...)
}

// SurveyMode returns the configured survey mode
func (c *Config) SurveyMode() models.SurveyMode {
	return models.SurveyMode(c.Survey.Mode)
}

// BatchParams returns the Monte Carlo settings with the given seed
func (c *Config) BatchParams(seed uint64) survey.BatchParams {
	return survey.BatchParams{
		Coverage:   c.Survey.Coverage,
		Iterations: c.Survey.Iterations,
		Seed:       seed,
		Workers:    c.Survey.Workers,
	}
}

// ResolveSeed returns the configured seed, or a time-derived one when the
// configured seed is 0.
func (c *Config) ResolveSeed(now time.Time) uint64 {
	if c.Survey.Seed != 0 {
		return c.Survey.Seed
	}
	seed := uint64(now.UnixNano())
	if seed == 0 {
		seed = math.MaxUint32
	}
	return seed
}
