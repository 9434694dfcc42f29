// Package dummy serves a fake pseudonymization backend: a Keycloak token endpoint, the
// TrustDeck/ACE REST API and the Mainzelliste session API, all backed by an in-memory store.
package dummy

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/connector/memory"
)

type ServerConfig struct {
	Port int
	// Latency is added to every API call, plus up to Jitter on top.
	Latency time.Duration
	Jitter  time.Duration
	// ErrorRate is the fraction of API calls answered with 500.
	ErrorRate float64
	TokenTTL  time.Duration
	Secret    string
	APIKey    string
}

func (c *ServerConfig) setDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = 5 * time.Minute
	}
	if c.Secret == "" {
		c.Secret = "pseudobench-dummy-secret"
	}
}

type Server struct {
	cfg   ServerConfig
	store *memory.Store
	ml    *patientList
	log   *log.Entry
}

func New(cfg ServerConfig) *Server {
	cfg.setDefaults()
	return &Server{
		cfg:   cfg,
		store: memory.NewStore(),
		ml:    newPatientList(),
		log:   log.WithField("component", "dummy"),
	}
}

// Store exposes the backing store for inspection.
func (s *Server) Store() *memory.Store {
	return s.store
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/realms/{realm}/protocol/openid-connect/token", s.issueToken).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.simulate)
	api.Use(s.authenticate)
	s.registerPseudonymRoutes(api)

	ml := router.PathPrefix("/mainzelliste").Subrouter()
	ml.Use(s.simulate)
	s.registerMainzellisteRoutes(ml)

	return router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("dummy backend running on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "dummy server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// simulate adds latency and random failures.
func (s *Server) simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delay := s.cfg.Latency
		if s.cfg.Jitter > 0 {
			delay += rand.N(s.cfg.Jitter)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if s.cfg.ErrorRate > 0 && rand.Float64() < s.cfg.ErrorRate {
			writeError(w, http.StatusInternalServerError, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
