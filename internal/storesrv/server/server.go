package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/common/logtrace"
	commonmiddleware "github.com/vicinaehq/backend/internal/common/middleware"
	"github.com/vicinaehq/backend/internal/storesrv/apis"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
	"github.com/vicinaehq/backend/pkg/api"
)

type StoreServer struct {
	Router  *chi.Mux
	service *apis.Service
	store   contentstore.Store
	metrics *metrics.Metrics
	cfg     *config.ConfigParam
}

func CreateNewServer(service *apis.Service, store contentstore.Store, m *metrics.Metrics, cfg *config.ConfigParam) (*StoreServer, error) {
	if service == nil {
		return nil, fmt.Errorf("store service is required")
	}
	if cfg == nil {
		cfg = config.Config()
	}
	s := &StoreServer{
		Router:  chi.NewRouter(),
		service: service,
		store:   store,
		metrics: m,
		cfg:     cfg,
	}
	return s, nil
}

func (s *StoreServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	s.Router.Use(commonmiddleware.ClientIP)
	s.Router.Use(s.metrics.Middleware)
	if s.cfg.HandleCORS {
		s.Router.Use(s.HandleCORS())
	}
	s.Router.Route("/v1/store", s.service.Router)
	if s.store != nil && s.store.Provider() == contentstore.ProviderLocal {
		s.Router.Route("/storage", s.service.StorageRouter)
	}
	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", httpx.WrapHttpRsp(s.service.Ready))
	s.Router.Handle("/metrics", s.metrics.Handler())
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in store router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			fmt.Printf("Logging err: %s\n", err.Error())
		}
	}
}

func (s *StoreServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &api.GetVersionRsp{
		ServerVersion: "Vicinae Extension Store: " + api.ServerVersion,
		ApiVersion:    api.ApiVersion_1_0,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *StoreServer) HandleCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders: []string{"ETag", "Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	})
}
