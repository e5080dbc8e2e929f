package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Formula holds the linear coefficients used to infer loudness, tempo and
// mode on the manual path, plus the dataset medians used as defaults for the
// optional fields. Calibrated offline against the reference dataset; never
// re-derived at runtime.
type Formula struct {
	Version string `toml:"version"`

	// loudness = LoudnessEnergySlope*energy + LoudnessIntercept
	LoudnessEnergySlope float64 `toml:"loudness_energy_slope"`
	LoudnessIntercept   float64 `toml:"loudness_intercept"`

	// tempo = TempoEnergySlope*energy + TempoDanceSlope*danceability + TempoIntercept
	TempoEnergySlope float64 `toml:"tempo_energy_slope"`
	TempoDanceSlope  float64 `toml:"tempo_dance_slope"`
	TempoIntercept   float64 `toml:"tempo_intercept"`

	// mode = 1 when mood > ModeMoodThreshold, else 0
	ModeMoodThreshold float64 `toml:"mode_mood_threshold"`

	MedianAcousticness     float64 `toml:"median_acousticness"`
	MedianInstrumentalness float64 `toml:"median_instrumentalness"`
	MedianExplicit         float64 `toml:"median_explicit"`
}

// Blend holds the anchors and weights for reconciling raw model confidence
// against a known ground-truth label.
type Blend struct {
	Version string `toml:"version"`

	// AgreeAnchor pulls confidence upward when model and dataset agree.
	AgreeAnchor float64 `toml:"agree_anchor"`
	AgreeWeight float64 `toml:"agree_weight"`

	// DisagreeAnchor pulls confidence downward when they disagree.
	DisagreeAnchor float64 `toml:"disagree_anchor"`
	DisagreeWeight float64 `toml:"disagree_weight"`
}

// Coefficients bundles all offline-calibrated constants.
type Coefficients struct {
	Formula Formula `toml:"formula"`
	Blend   Blend   `toml:"blend"`
}

// DefaultCoefficients returns the built-in calibration.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Formula: Formula{
			Version:                "formula-v1",
			LoudnessEnergySlope:    13.6,
			LoudnessIntercept:      -14.6,
			TempoEnergySlope:       30.0,
			TempoDanceSlope:        -12.0,
			TempoIntercept:         110.0,
			ModeMoodThreshold:      0.5,
			MedianAcousticness:     0.169,
			MedianInstrumentalness: 0.0000416,
			MedianExplicit:         0,
		},
		Blend: Blend{
			Version:        "blend-v1",
			AgreeAnchor:    95.0,
			AgreeWeight:    0.5,
			DisagreeAnchor: 25.0,
			DisagreeWeight: 0.5,
		},
	}
}

// LoadCoefficients returns the defaults, overlaid with the TOML file at path
// when one is given.
func LoadCoefficients(path string) (Coefficients, error) {
	coef := DefaultCoefficients()
	if path == "" {
		return coef, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return coef, fmt.Errorf("read coefficients: %w", err)
	}
	if err := toml.Unmarshal(raw, &coef); err != nil {
		return coef, fmt.Errorf("parse coefficients: %w", err)
	}
	return coef, nil
}

// ProvideCoefficients loads coefficients per the config, falling back to the
// built-in calibration on error.
func ProvideCoefficients(cfg Config, logger *zap.SugaredLogger) Coefficients {
	coef, err := LoadCoefficients(cfg.CoefficientsPath)
	if err != nil {
		logger.Errorw("Failed to load coefficient overrides, using defaults", "error", err)
		return DefaultCoefficients()
	}
	return coef
}

var CoefficientOptions = ProvideCoefficients
