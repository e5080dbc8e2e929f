package main

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/chartlab/auricle/catalog"
	"github.com/chartlab/auricle/config"
	"github.com/chartlab/auricle/database"
	"github.com/chartlab/auricle/featurestore"
	authHandler "github.com/chartlab/auricle/handler/auth"
	healthHandler "github.com/chartlab/auricle/handler/health"
	liveHandler "github.com/chartlab/auricle/handler/live"
	predictHandler "github.com/chartlab/auricle/handler/predict"
	searchHandler "github.com/chartlab/auricle/handler/search"
	"github.com/chartlab/auricle/firestore"
	"github.com/chartlab/auricle/inference"
	"github.com/chartlab/auricle/logger"
	"github.com/chartlab/auricle/reconcile"
	"github.com/chartlab/auricle/resolver"
	"go.uber.org/zap"
)

// Route is an http.Handler that knows the mux pattern
// under which it will be registered.
type Route interface {
	http.Handler

	// Pattern reports the path at which this is registered.
	Pattern() string
}

//	@title			Auricle
//	@version		1.0
//	@description	Hit-song prediction API

// @host		localhost:8080
// @BasePath	/
func main() {
	// Local development keeps credentials in .env; missing file is fine.
	godotenv.Load()

	fx.New(
		fx.Provide(
			NewHTTPServer,
			config.Options,
			logger.Options,
			config.CoefficientOptions,
			featurestore.Options,
			catalog.Options,
			inference.Options,
			database.Options,
			database.StoreOptions,
			firestore.Options,
			liveHandler.Options,
			resolver.Options,
			reconcile.Options,

			healthHandler.NewHealthHandler,
			predictHandler.NewPredictHandler,
			searchHandler.NewSearchHandler,
			searchHandler.NewDatasetSearchHandler,
		),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}

func NewHTTPServer(
	lc fx.Lifecycle,
	log *zap.SugaredLogger,
	cfg config.Config,
	health *healthHandler.HealthHandler,
	predict *predictHandler.PredictHandler,
	search *searchHandler.SearchHandler,
	dataset *searchHandler.DatasetSearchHandler,
	live *liveHandler.Hub,
) *http.Server {
	r := mux.NewRouter()

	register := func(route Route) {
		r.Handle(route.Pattern(), route)
	}
	register(health)
	register(search)
	register(dataset)
	register(live)

	// The predict endpoint optionally sits behind bearer-token auth.
	r.Handle(predict.Pattern(), authHandler.Middleware(cfg.APISecret, log, predict))

	jsonHandler := jsonMiddleware(r)

	srv := &http.Server{Addr: cfg.Listen, Handler: jsonHandler}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Infof("Starting HTTP server at %s", srv.Addr)
			go srv.Serve(ln)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
