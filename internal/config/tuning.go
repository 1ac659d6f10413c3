package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/fcw/params endpoint so the same JSON can
// be used for both startup configuration and inspection.
type TuningConfig struct {
	// Tracker params
	IoUThreshold     *float64 `json:"iou_threshold,omitempty"`
	MinConfidence    *float64 `json:"min_confidence,omitempty"`
	MaxAge           *int     `json:"max_age,omitempty"`
	MinHits          *int     `json:"min_hits,omitempty"`
	MaxTracks        *int     `json:"max_tracks,omitempty"`
	ProcessNoise     *float64 `json:"process_noise,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`

	// Distance estimation params
	FocalLengthPx    *float64                  `json:"focal_length_px,omitempty"`
	MinDistanceM     *float64                  `json:"min_distance_m,omitempty"`
	MaxDistanceM     *float64                  `json:"max_distance_m,omitempty"`
	DefaultDistanceM *float64                  `json:"default_distance_m,omitempty"`
	ObjectSizes      map[string]fcw.ObjectSize `json:"object_sizes,omitempty"`

	// Kinematics params
	VelocitySmoothingAlpha *float64 `json:"velocity_smoothing_alpha,omitempty"`
	MaxHistoryLength       *int     `json:"max_history_length,omitempty"`
	MaxTTCSeconds          *float64 `json:"max_ttc_seconds,omitempty"`
	MinClosingSpeedMps     *float64 `json:"min_closing_speed_mps,omitempty"`

	// Risk thresholds, shared by the per-track scorer and the analyzer
	CriticalDistanceM *float64 `json:"critical_distance_m,omitempty"`
	HighDistanceM     *float64 `json:"high_distance_m,omitempty"`
	MediumDistanceM   *float64 `json:"medium_distance_m,omitempty"`
	CriticalTTCSec    *float64 `json:"critical_ttc_sec,omitempty"`
	HighTTCSec        *float64 `json:"high_ttc_sec,omitempty"`
	MediumTTCSec      *float64 `json:"medium_ttc_sec,omitempty"`
	HighSpeedKmh      *float64 `json:"high_speed_kmh,omitempty"`
	MediumSpeedKmh    *float64 `json:"medium_speed_kmh,omitempty"`

	// Collision analyzer params
	AnalyzerHistoryLength *int     `json:"analyzer_history_length,omitempty"`
	LaneChangePx          *float64 `json:"lane_change_px,omitempty"`
	EgoLaneChangePx       *float64 `json:"ego_lane_change_px,omitempty"`
	ApproachSpeedPx       *float64 `json:"approach_speed_px,omitempty"`
	MinPixelSpeedPx       *float64 `json:"min_pixel_speed_px,omitempty"`
	PixelSpeedToMps       *float64 `json:"pixel_speed_to_mps,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are structurally valid.
// A config that fails here must be rejected at startup, never applied
// mid-stream.
func (c *TuningConfig) Validate() error {
	if c.IoUThreshold != nil {
		if *c.IoUThreshold < 0 || *c.IoUThreshold > 1 {
			return fmt.Errorf("iou_threshold must be between 0 and 1, got %f", *c.IoUThreshold)
		}
	}
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}
	if c.MaxAge != nil && *c.MaxAge < 0 {
		return fmt.Errorf("max_age must be non-negative, got %d", *c.MaxAge)
	}
	if c.MinHits != nil && *c.MinHits < 1 {
		return fmt.Errorf("min_hits must be at least 1, got %d", *c.MinHits)
	}
	if c.MaxTracks != nil && *c.MaxTracks < 1 {
		return fmt.Errorf("max_tracks must be at least 1, got %d", *c.MaxTracks)
	}
	if c.FocalLengthPx != nil && *c.FocalLengthPx <= 0 {
		return fmt.Errorf("focal_length_px must be positive, got %f", *c.FocalLengthPx)
	}
	if c.VelocitySmoothingAlpha != nil {
		if *c.VelocitySmoothingAlpha <= 0 || *c.VelocitySmoothingAlpha > 1 {
			return fmt.Errorf("velocity_smoothing_alpha must be in (0, 1], got %f", *c.VelocitySmoothingAlpha)
		}
	}

	// No distance, TTC or speed threshold may be negative.
	for name, v := range map[string]*float64{
		"min_distance_m":      c.MinDistanceM,
		"max_distance_m":      c.MaxDistanceM,
		"default_distance_m":  c.DefaultDistanceM,
		"critical_distance_m": c.CriticalDistanceM,
		"high_distance_m":     c.HighDistanceM,
		"medium_distance_m":   c.MediumDistanceM,
		"critical_ttc_sec":    c.CriticalTTCSec,
		"high_ttc_sec":        c.HighTTCSec,
		"medium_ttc_sec":      c.MediumTTCSec,
		"high_speed_kmh":      c.HighSpeedKmh,
		"medium_speed_kmh":    c.MediumSpeedKmh,
		"max_ttc_seconds":     c.MaxTTCSeconds,
		"lane_change_px":      c.LaneChangePx,
		"ego_lane_change_px":  c.EgoLaneChangePx,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	// Threat brackets must nest: critical inside high inside medium.
	cd, hd, md := c.GetCriticalDistanceM(), c.GetHighDistanceM(), c.GetMediumDistanceM()
	if cd > hd || hd > md {
		return fmt.Errorf("distance thresholds must satisfy critical <= high <= medium, got %f/%f/%f", cd, hd, md)
	}
	ct, ht, mt := c.GetCriticalTTCSec(), c.GetHighTTCSec(), c.GetMediumTTCSec()
	if ct > ht || ht > mt {
		return fmt.Errorf("ttc thresholds must satisfy critical <= high <= medium, got %f/%f/%f", ct, ht, mt)
	}

	for class, size := range c.ObjectSizes {
		if size.HeightM <= 0 || size.WidthM <= 0 {
			return fmt.Errorf("object size for %q must have positive height and width", class)
		}
	}

	return nil
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.3
	}
	return *c.IoUThreshold
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5
	}
	return *c.MinConfidence
}

// GetMaxAge returns the max_age value or the default.
func (c *TuningConfig) GetMaxAge() int {
	if c.MaxAge == nil {
		return 5
	}
	return *c.MaxAge
}

// GetMinHits returns the min_hits value or the default.
func (c *TuningConfig) GetMinHits() int {
	if c.MinHits == nil {
		return 2
	}
	return *c.MinHits
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 100
	}
	return *c.MaxTracks
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 1.0
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 100.0
	}
	return *c.MeasurementNoise
}

// GetFocalLengthPx returns the focal_length_px value or the default.
func (c *TuningConfig) GetFocalLengthPx() float64 {
	if c.FocalLengthPx == nil {
		return 800
	}
	return *c.FocalLengthPx
}

// GetMinDistanceM returns the min_distance_m value or the default.
func (c *TuningConfig) GetMinDistanceM() float64 {
	if c.MinDistanceM == nil {
		return 0.5
	}
	return *c.MinDistanceM
}

// GetMaxDistanceM returns the max_distance_m value or the default.
func (c *TuningConfig) GetMaxDistanceM() float64 {
	if c.MaxDistanceM == nil {
		return 100
	}
	return *c.MaxDistanceM
}

// GetDefaultDistanceM returns the default_distance_m value or the default.
func (c *TuningConfig) GetDefaultDistanceM() float64 {
	if c.DefaultDistanceM == nil {
		return 50
	}
	return *c.DefaultDistanceM
}

// GetVelocitySmoothingAlpha returns the velocity_smoothing_alpha value or the default.
func (c *TuningConfig) GetVelocitySmoothingAlpha() float64 {
	if c.VelocitySmoothingAlpha == nil {
		return 0.3
	}
	return *c.VelocitySmoothingAlpha
}

// GetMaxHistoryLength returns the max_history_length value or the default.
func (c *TuningConfig) GetMaxHistoryLength() int {
	if c.MaxHistoryLength == nil {
		return 10
	}
	return *c.MaxHistoryLength
}

// GetMaxTTCSeconds returns the max_ttc_seconds value or the default.
func (c *TuningConfig) GetMaxTTCSeconds() float64 {
	if c.MaxTTCSeconds == nil {
		return 60
	}
	return *c.MaxTTCSeconds
}

// GetMinClosingSpeedMps returns the min_closing_speed_mps value or the default.
func (c *TuningConfig) GetMinClosingSpeedMps() float64 {
	if c.MinClosingSpeedMps == nil {
		return 0.1
	}
	return *c.MinClosingSpeedMps
}

// GetCriticalDistanceM returns the critical_distance_m value or the default.
func (c *TuningConfig) GetCriticalDistanceM() float64 {
	if c.CriticalDistanceM == nil {
		return 10
	}
	return *c.CriticalDistanceM
}

// GetHighDistanceM returns the high_distance_m value or the default.
func (c *TuningConfig) GetHighDistanceM() float64 {
	if c.HighDistanceM == nil {
		return 15
	}
	return *c.HighDistanceM
}

// GetMediumDistanceM returns the medium_distance_m value or the default.
func (c *TuningConfig) GetMediumDistanceM() float64 {
	if c.MediumDistanceM == nil {
		return 20
	}
	return *c.MediumDistanceM
}

// GetCriticalTTCSec returns the critical_ttc_sec value or the default.
func (c *TuningConfig) GetCriticalTTCSec() float64 {
	if c.CriticalTTCSec == nil {
		return 2
	}
	return *c.CriticalTTCSec
}

// GetHighTTCSec returns the high_ttc_sec value or the default.
func (c *TuningConfig) GetHighTTCSec() float64 {
	if c.HighTTCSec == nil {
		return 4
	}
	return *c.HighTTCSec
}

// GetMediumTTCSec returns the medium_ttc_sec value or the default.
func (c *TuningConfig) GetMediumTTCSec() float64 {
	if c.MediumTTCSec == nil {
		return 6
	}
	return *c.MediumTTCSec
}

// GetHighSpeedKmh returns the high_speed_kmh value or the default.
func (c *TuningConfig) GetHighSpeedKmh() float64 {
	if c.HighSpeedKmh == nil {
		return 60
	}
	return *c.HighSpeedKmh
}

// GetMediumSpeedKmh returns the medium_speed_kmh value or the default.
func (c *TuningConfig) GetMediumSpeedKmh() float64 {
	if c.MediumSpeedKmh == nil {
		return 30
	}
	return *c.MediumSpeedKmh
}

// GetAnalyzerHistoryLength returns the analyzer_history_length value or the default.
func (c *TuningConfig) GetAnalyzerHistoryLength() int {
	if c.AnalyzerHistoryLength == nil {
		return 10
	}
	return *c.AnalyzerHistoryLength
}

// GetLaneChangePx returns the lane_change_px value or the default.
func (c *TuningConfig) GetLaneChangePx() float64 {
	if c.LaneChangePx == nil {
		return 20
	}
	return *c.LaneChangePx
}

// GetEgoLaneChangePx returns the ego_lane_change_px value or the default.
func (c *TuningConfig) GetEgoLaneChangePx() float64 {
	if c.EgoLaneChangePx == nil {
		return 30
	}
	return *c.EgoLaneChangePx
}

// GetApproachSpeedPx returns the approach_speed_px value or the default.
func (c *TuningConfig) GetApproachSpeedPx() float64 {
	if c.ApproachSpeedPx == nil {
		return 2
	}
	return *c.ApproachSpeedPx
}

// GetMinPixelSpeedPx returns the min_pixel_speed_px value or the default.
func (c *TuningConfig) GetMinPixelSpeedPx() float64 {
	if c.MinPixelSpeedPx == nil {
		return 0.1
	}
	return *c.MinPixelSpeedPx
}

// GetPixelSpeedToMps returns the pixel_speed_to_mps value or the default.
func (c *TuningConfig) GetPixelSpeedToMps() float64 {
	if c.PixelSpeedToMps == nil {
		return 0.1
	}
	return *c.PixelSpeedToMps
}

// GetObjectSizes returns the configured class size table, falling back
// to the built-in defaults when unset.
func (c *TuningConfig) GetObjectSizes() map[string]fcw.ObjectSize {
	if len(c.ObjectSizes) == 0 {
		return fcw.DefaultKinematicsConfig().ObjectSizes
	}
	return c.ObjectSizes
}

// PipelineConfig assembles the pipeline stage configuration from the
// tuning values.
func (c *TuningConfig) PipelineConfig() fcw.PipelineConfig {
	defaults := fcw.DefaultKinematicsConfig()
	return fcw.PipelineConfig{
		Tracker: fcw.TrackerConfig{
			MaxTracks:        c.GetMaxTracks(),
			MaxAge:           c.GetMaxAge(),
			MinHits:          c.GetMinHits(),
			IoUThreshold:     float32(c.GetIoUThreshold()),
			MinConfidence:    float32(c.GetMinConfidence()),
			ProcessNoise:     float32(c.GetProcessNoise()),
			MeasurementNoise: float32(c.GetMeasurementNoise()),
		},
		Kinematics: fcw.KinematicsConfig{
			FocalLengthPx:    float32(c.GetFocalLengthPx()),
			ObjectSizes:      c.GetObjectSizes(),
			FallbackSize:     defaults.FallbackSize,
			MinDistanceM:     c.GetMinDistanceM(),
			MaxDistanceM:     c.GetMaxDistanceM(),
			DefaultDistanceM: c.GetDefaultDistanceM(),

			VelocitySmoothingAlpha: float32(c.GetVelocitySmoothingAlpha()),
			MaxHistoryLength:       c.GetMaxHistoryLength(),

			MaxTTCSeconds:      c.GetMaxTTCSeconds(),
			MinClosingSpeedMps: c.GetMinClosingSpeedMps(),

			CriticalDistanceM: c.GetCriticalDistanceM(),
			HighDistanceM:     c.GetHighDistanceM(),
			MediumDistanceM:   c.GetMediumDistanceM(),
			CriticalTTCSec:    c.GetCriticalTTCSec(),
			HighTTCSec:        c.GetHighTTCSec(),
			MediumTTCSec:      c.GetMediumTTCSec(),
			HighSpeedKmh:      c.GetHighSpeedKmh(),
			MediumSpeedKmh:    c.GetMediumSpeedKmh(),

			HighPriorityClasses:   defaults.HighPriorityClasses,
			MediumPriorityClasses: defaults.MediumPriorityClasses,
		},
		Analyzer: fcw.AnalyzerConfig{
			CriticalDistanceM: c.GetCriticalDistanceM(),
			HighDistanceM:     c.GetHighDistanceM(),
			MediumDistanceM:   c.GetMediumDistanceM(),
			CriticalTTCSec:    c.GetCriticalTTCSec(),
			HighTTCSec:        c.GetHighTTCSec(),
			HistoryLength:     c.GetAnalyzerHistoryLength(),
			EvictAfterAge:     c.GetMaxAge(),
			LaneChangePx:      c.GetLaneChangePx(),
			ApproachSpeedPx:   c.GetApproachSpeedPx(),
			MinPixelSpeedPx:   c.GetMinPixelSpeedPx(),
			PixelSpeedToMps:   c.GetPixelSpeedToMps(),
		},
		LaneChangeThresholdPx: float32(c.GetEgoLaneChangePx()),
	}
}
