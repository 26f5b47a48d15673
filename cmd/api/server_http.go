package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/api"
	"github.com/NordCoder/Stocker/internal/obs"
	authsvc "github.com/NordCoder/Stocker/internal/services/api/auth"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, st *storage, as *authStack) *http.Server {
	cookies := cfg.Cookie.AsCookieConfig()
	gate := authsvc.NewGate(as.codec, cookies.AccessName, logger)
	srv := authsvc.NewServer(as.uc, gate, authsvc.Opts{
		Logger:     logger,
		Cookies:    cookies,
		TrustProxy: cfg.Server.TrustProxy,
	})

	r := mux.NewRouter()
	r.Use(obs.Recover(logger), obs.RequestLogger(logger))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", obs.HealthHandler(st.health)).Methods(http.MethodGet)
	srv.Mount(r)

	handler := cors(cfg.Server.CORSOrigins, logger)(r)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           obs.HTTPHandler(handler, "stocker-api"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
