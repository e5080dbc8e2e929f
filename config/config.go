package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL string

	SpotifyID     string
	SpotifySecret string

	// DatasetPath points at the reference dataset CSV.
	DatasetPath string `default:"data/reference_tracks.csv"`
	// ModelPath points at the exported scoring artifact.
	ModelPath string `default:"models/hit_song_forest.json"`
	// CoefficientsPath optionally overrides the built-in formula and blend
	// coefficients with a TOML file.
	CoefficientsPath string

	// FirestoreProject enables the audit archive when set.
	FirestoreProject string

	// APISecret enables bearer-token auth on the predict endpoint when set.
	APISecret string

	CatalogTimeout time.Duration `default:"10s"`
	Listen         string        `default:":8080"`

	// HitThreshold is the popularity cutoff separating HIT from FLOP in the
	// reference dataset.
	HitThreshold int `default:"50"`
}

func ProvideConfig() Config {
	var cfg Config
	err := envconfig.Process("auricle", &cfg)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}

var Options = ProvideConfig
