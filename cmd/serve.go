package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tribunal/internal/evidence"
	"github.com/sells-group/tribunal/internal/meta"
	"github.com/sells-group/tribunal/internal/model"
	"github.com/sells-group/tribunal/internal/report"
	"github.com/sells-group/tribunal/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for audit submission and consolidation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		api := &apiServer{db: db}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Use(rateLimit(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))

		r.Get("/health", api.health)
		r.Post("/runs", api.submitRun)
		r.Get("/runs", api.listRuns)
		r.Get("/runs/{id}", api.getRun)
		r.Post("/consolidate", api.consolidate)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("serve: shutting down")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("serve: listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// rateLimit applies a shared token bucket to every request.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type apiServer struct {
	db store.Store
}

// auditRequest carries everything one synthesis needs in a single payload.
type auditRequest struct {
	Subject  string                 `json:"subject"`
	Criteria []model.Criterion      `json:"criteria"`
	Evidence []model.EvidenceRecord `json:"evidence"`
	Opinions []model.PersonaOpinion `json:"opinions"`
}

func (s *apiServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) submitRun(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if len(req.Criteria) == 0 {
		writeError(w, http.StatusBadRequest, "at least one criterion is required")
		return
	}

	evStore := evidence.NewStore()
	for _, rec := range req.Evidence {
		if err := evStore.Add(rec); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	builder := report.NewBuilder(cfg.Policy)
	rep, err := builder.Build(r.Context(), req.Subject, model.Rubric{Criteria: req.Criteria}, req.Opinions, evStore)
	if err != nil {
		zap.L().Error("serve: synthesis failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	run := model.AuditRun{
		RunID:          uuid.New().String(),
		Subject:        req.Subject,
		OverallScore:   rep.OverallScore,
		Opinions:       req.Opinions,
		Evidence:       evStore.Snapshot(),
		Contradictions: rep.DetectedContradictions,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.SaveRun(r.Context(), run); err != nil {
		zap.L().Error("serve: save run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save run")
		return
	}
	if err := s.db.SaveReport(r.Context(), run.RunID, rep); err != nil {
		zap.L().Error("serve: save report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save report")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"run_id": run.RunID,
		"report": rep,
	})
}

func (s *apiServer) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListRuns(r.Context(), store.RunFilter{
		Subject: r.URL.Query().Get("subject"),
	})
	if err != nil {
		zap.L().Error("serve: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("serve: get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) consolidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	runs, err := s.db.ListRuns(r.Context(), store.RunFilter{Subject: req.Subject})
	if err != nil {
		zap.L().Error("serve: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	state, err := meta.New(cfg.Policy).Consolidate(runs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
