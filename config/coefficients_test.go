package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCoefficientsEmptyPathReturnsDefaults(t *testing.T) {
	coef, err := LoadCoefficients("")
	if err != nil {
		t.Fatal(err)
	}
	if coef != DefaultCoefficients() {
		t.Error("empty path must return the built-in calibration")
	}
}

func TestLoadCoefficientsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coefficients.toml")
	override := `[blend]
version = "blend-v2"
agree_weight = 0.75
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	coef, err := LoadCoefficients(path)
	if err != nil {
		t.Fatal(err)
	}
	if coef.Blend.Version != "blend-v2" || coef.Blend.AgreeWeight != 0.75 {
		t.Errorf("override not applied: %+v", coef.Blend)
	}
	if coef.Blend.AgreeAnchor != 95.0 {
		t.Error("fields absent from the overlay must keep their defaults")
	}
	if coef.Formula != DefaultCoefficients().Formula {
		t.Error("formula section must be untouched by a blend-only overlay")
	}
}

func TestLoadCoefficientsMissingFile(t *testing.T) {
	if _, err := LoadCoefficients("/does/not/exist.toml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
