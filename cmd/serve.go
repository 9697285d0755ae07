package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/debate"
	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/monitoring"
	"github.com/parleylabs/parley/internal/provider"
	"github.com/parleylabs/parley/internal/routing"
	"github.com/parleylabs/parley/internal/store"
	"github.com/parleylabs/parley/internal/supervisor"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(env.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *appEnv, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	h := &apiHandlers{env: env, cfg: cfg}

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/debates", h.runDebate)
		r.Get("/debates", h.listDebates)
		r.Get("/debates/{id}", h.getDebate)
		r.Get("/routing/resolve", h.resolveRouting)
		r.Post("/routing/policies", h.upsertPolicy)
		r.Get("/routing/policies", h.listPolicies)
		r.Get("/workspaces/{id}/budget", h.budget)
		r.Put("/workspaces/{id}", h.upsertWorkspace)
		r.Get("/metrics", h.metrics)
	})

	return r
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type apiHandlers struct {
	env *appEnv
	cfg *config.Config
}

func (h *apiHandlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runDebate executes a debate synchronously, scores it, persists the
// result, and returns it.
func (h *apiHandlers) runDebate(w http.ResponseWriter, r *http.Request) {
	var req debate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = h.cfg.Debate.MaxTokens
	}
	if req.Rounds == 0 {
		req.Rounds = h.cfg.Debate.DefaultRounds
	}

	result, err := h.env.Orchestrator.Run(r.Context(), req)
	if err != nil {
		writeDebateError(w, err)
		return
	}

	result.RiskScore = h.env.Supervisor.CalculateRiskScore(r.Context(), result)
	result.ApprovalStatus = supervisor.DetermineApprovalStatus(result.RiskScore)

	if err := h.env.Store.SaveDebate(r.Context(), result); err != nil {
		zap.L().Error("save debate failed", zap.String("debate_id", result.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist debate")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandlers) getDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.env.Store.GetDebate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load debate")
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "debate not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandlers) listDebates(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	results, err := h.env.Store.ListDebates(r.Context(), store.DebateFilter{
		WorkspaceID: r.URL.Query().Get("workspace"),
		Limit:       limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list debates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debates": results, "count": len(results)})
}

// resolveRouting is a pure read: it reports what the engine would pick
// without spending anything.
func (h *apiHandlers) resolveRouting(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}
	taskType := model.ParseTaskType(r.URL.Query().Get("task"))

	decision, err := h.env.Engine.Resolve(r.Context(), workspaceID, taskType)
	if err != nil {
		if routing.IsBudgetExceeded(err) {
			writeError(w, http.StatusPaymentRequired, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve routing")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *apiHandlers) budget(w http.ResponseWriter, r *http.Request) {
	status, err := h.env.Ledger.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *apiHandlers) upsertWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                      string  `json:"name"`
		MonthlyBudget             float64 `json:"monthly_budget"`
		MaxPluginExecutionsPerDay int     `json:"max_plugin_executions_per_day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MonthlyBudget < 0 {
		writeError(w, http.StatusBadRequest, "monthly_budget must be >= 0")
		return
	}

	ws := model.Workspace{
		ID:                        chi.URLParam(r, "id"),
		Name:                      req.Name,
		MonthlyBudget:             req.MonthlyBudget,
		MaxPluginExecutionsPerDay: req.MaxPluginExecutionsPerDay,
	}
	if err := h.env.Store.UpsertWorkspace(r.Context(), ws); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save workspace")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *apiHandlers) upsertPolicy(w http.ResponseWriter, r *http.Request) {
	var policy model.RoutingPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if policy.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	policy.TaskType = model.ParseTaskType(string(policy.TaskType))

	if err := h.env.Store.UpsertRoutingPolicy(r.Context(), policy); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save policy")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (h *apiHandlers) listPolicies(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}
	policies, err := h.env.Store.ListRoutingPolicies(r.Context(), workspaceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list policies")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies, "count": len(policies)})
}

func (h *apiHandlers) metrics(w http.ResponseWriter, r *http.Request) {
	lookback := queryInt(r, "lookback_hours", 24)
	snap, err := h.env.Collector.Collect(r.Context(), r.URL.Query().Get("workspace"), lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// writeDebateError maps orchestration failures onto HTTP statuses with
// enough detail for a non-generic error display.
func writeDebateError(w http.ResponseWriter, err error) {
	if debate.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if routing.IsBudgetExceeded(err) {
		writeError(w, http.StatusPaymentRequired, err.Error())
		return
	}
	if te, ok := debate.AsTurnError(err); ok {
		detail := map[string]any{
			"error":       te.Error(),
			"round":       te.Round,
			"participant": te.ParticipantID,
			"provider":    te.Provider,
		}
		if pe, ok := provider.AsProviderError(err); ok {
			detail["vendor_status"] = pe.StatusCode
			detail["vendor_message"] = pe.VendorMessage
		}
		writeJSON(w, http.StatusBadGateway, detail)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
