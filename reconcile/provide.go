package reconcile

import (
	"github.com/chartlab/auricle/config"
	"github.com/chartlab/auricle/database"
	"github.com/chartlab/auricle/featurestore"
	"github.com/chartlab/auricle/firestore"
	"github.com/chartlab/auricle/handler/live"
	"github.com/chartlab/auricle/inference"
	"github.com/chartlab/auricle/resolver"
	"go.uber.org/zap"
)

// ProvideReconciler wires the reconciler from its concrete collaborators.
func ProvideReconciler(
	logger *zap.SugaredLogger,
	res *resolver.Resolver,
	engine *inference.Engine,
	features *featurestore.Store,
	store *database.Store,
	archive *firestore.Archive,
	hub *live.Hub,
	coef config.Coefficients,
) *Reconciler {
	r := New(logger, res, engine, features, store, coef.Blend)
	if archive != nil {
		r.WithArchive(archive)
	}
	if hub != nil {
		r.WithFeed(hub)
	}
	return r
}

var Options = ProvideReconciler
