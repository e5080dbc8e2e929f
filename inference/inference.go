package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/chartlab/auricle/auricle"
	"github.com/chartlab/auricle/config"
	"go.uber.org/zap"
)

// Artifact is the portable export of the trained random-forest classifier:
// one flattened node-array per tree, produced offline by the training
// pipeline. The artifact is opaque to the rest of the system; only feature
// order and version leak out.
type Artifact struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	FeatureOrder []string `json:"feature_order"`
	Trees        []Tree   `json:"trees"`
}

// Tree is a decision tree in flattened form. Node i branches left when
// x[Feature[i]] <= Threshold[i]. Leaves have Left[i] == -1 and carry per-class
// sample counts in Value[i].
type Tree struct {
	Feature   []int        `json:"feature"`
	Threshold []float64    `json:"threshold"`
	Left      []int        `json:"children_left"`
	Right     []int        `json:"children_right"`
	Value     [][2]float64 `json:"value"`
}

func (a *Artifact) validate() error {
	if len(a.Trees) == 0 {
		return fmt.Errorf("artifact %q has no trees", a.Name)
	}
	if len(a.FeatureOrder) != auricle.NumFeatures {
		return fmt.Errorf("artifact %q expects %d features, want %d",
			a.Name, len(a.FeatureOrder), auricle.NumFeatures)
	}
	names := auricle.FeatureNames()
	for i, name := range a.FeatureOrder {
		if name != names[i] {
			return fmt.Errorf("artifact feature %d is %q, want %q", i, name, names[i])
		}
	}
	for ti, t := range a.Trees {
		n := len(t.Feature)
		if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
			return fmt.Errorf("tree %d has inconsistent node arrays", ti)
		}
		if n == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
	}
	return nil
}

// hitProbability walks the tree for one vector and returns the leaf's class-1
// share.
func (t *Tree) hitProbability(v auricle.FeatureVector) float64 {
	n := 0
	for t.Left[n] != -1 {
		f := t.Feature[n]
		if f >= 0 && f < auricle.NumFeatures && v[f] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	total := t.Value[n][0] + t.Value[n][1]
	if total == 0 {
		return 0.5
	}
	return t.Value[n][1] / total
}

// Engine owns the immutable scoring artifact, loaded once per process.
// Concurrent callers before the first successful load share the same
// in-flight load.
type Engine struct {
	log  *zap.SugaredLogger
	path string

	once     sync.Once
	artifact *Artifact
	loadErr  error
}

// NewEngine builds an engine that will load the artifact at path on first
// use.
func NewEngine(log *zap.SugaredLogger, path string) *Engine {
	return &Engine{log: log, path: path}
}

// Load deserializes the artifact, exactly once for the engine's lifetime.
func (e *Engine) Load() error {
	e.once.Do(func() {
		raw, err := os.ReadFile(e.path)
		if err != nil {
			e.loadErr = auricle.WrapError(auricle.KindArtifactUnavailable, err, "read artifact %s", e.path)
			return
		}
		var a Artifact
		if err := json.Unmarshal(raw, &a); err != nil {
			e.loadErr = auricle.WrapError(auricle.KindArtifactUnavailable, err, "parse artifact %s", e.path)
			return
		}
		if err := a.validate(); err != nil {
			e.loadErr = auricle.WrapError(auricle.KindArtifactUnavailable, err, "validate artifact")
			return
		}
		e.artifact = &a
		e.log.Infow("Loaded scoring artifact",
			"name", a.Name, "version", a.Version, "trees", len(a.Trees))
	})
	return e.loadErr
}

// Version returns the loaded artifact's version, or empty before load.
func (e *Engine) Version() string {
	if e.artifact == nil {
		return ""
	}
	return e.artifact.Version
}

// Score feeds the positionally ordered vector to the forest and returns the
// predicted label with the probability of that label as a percentage, rounded
// to two decimals. Pure function of (artifact, vector).
func (e *Engine) Score(v auricle.FeatureVector) (auricle.Label, float64, error) {
	if err := e.Load(); err != nil {
		return "", 0, err
	}

	var sum float64
	for i := range e.artifact.Trees {
		sum += e.artifact.Trees[i].hitProbability(v)
	}
	pHit := sum / float64(len(e.artifact.Trees))

	hit := pHit >= 0.5
	p := pHit
	if !hit {
		p = 1 - pHit
	}
	return auricle.LabelFor(hit), round2(p * 100), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ProvideEngine loads the artifact at startup. Failure here is fatal: the
// engine is a hard dependency with no runtime fallback.
func ProvideEngine(cfg config.Config, logger *zap.SugaredLogger) (*Engine, error) {
	e := NewEngine(logger, cfg.ModelPath)
	if err := e.Load(); err != nil {
		return nil, err
	}
	return e, nil
}

var Options = ProvideEngine
