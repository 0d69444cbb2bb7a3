package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/collections-cli/internal/intake"
	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/internal/sla"
	"github.com/sells-group/collections-cli/internal/store"
)

var slaInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{env: env}
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      api.routes(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		if slaInterval > 0 {
			go api.slaLoop(ctx, slaInterval)
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("http server listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zap.L().Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

type apiServer struct {
	env *intakeEnv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Role"},
	}))
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(requireRole)
		api.Get("/cases", s.listCases)
		api.Get("/cases/{id}", s.getCase)
		api.Get("/agencies", s.listAgencies)
		api.Get("/agencies/ranked", s.rankedAgencies)
		api.Get("/sla/policy", s.slaPolicy)

		// Case management and the agency roster are an admin surface.
		api.Group(func(admin chi.Router) {
			admin.Use(requireCaseManager)
			admin.Post("/cases/{id}/status", s.updateStatus)
			admin.Post("/cases/{id}/reopen", s.reopenCase)
			admin.Post("/intake/submit", s.submitIntake)
			admin.Post("/agencies", s.upsertAgency)
		})
	})
	return r
}

// requestLogger logs each request through the global logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type roleKey struct{}

// requireRole gates the API on the X-Role header. Unknown or absent roles
// are rejected before any handler state is touched.
func requireRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := model.Role(r.Header.Get("X-Role"))
		if !role.Valid() {
			writeError(w, http.StatusForbidden, "unknown or missing X-Role header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, role)))
	})
}

// requireCaseManager rejects roles that may not manage cases.
func requireCaseManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !roleFrom(r).CanManageCases() {
			writeError(w, http.StatusForbidden, "role may not manage cases")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func roleFrom(r *http.Request) model.Role {
	role, _ := r.Context().Value(roleKey{}).(model.Role)
	return role
}

func (s *apiServer) listCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cases, err := s.env.Store.ListCases(r.Context(), store.CaseFilter{
		Status:   model.CaseStatus(q.Get("status")),
		AgencyID: q.Get("agency"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *apiServer) getCase(w http.ResponseWriter, r *http.Request) {
	rec, err := s.env.Store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type statusUpdateRequest struct {
	Status      string `json:"status"`
	PromiseDate string `json:"promise_date,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
	Actor       string `json:"actor,omitempty"`
}

func (s *apiServer) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.env.Store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	update, err := intake.NewStatusUpdate(rec)
	if err != nil {
		writeError(w, http.StatusConflict, "case is locked")
		return
	}
	update.Status = model.CaseStatus(req.Status)
	update.PromiseDate = req.PromiseDate
	update.Remarks = req.Remarks

	if err := update.SubmitUpdate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = string(roleFrom(r))
	}
	if err := update.ConfirmSubmit(actor, time.Now().UTC()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.env.Store.UpdateCase(r.Context(), *rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) reopenCase(w http.ResponseWriter, r *http.Request) {
	rec, err := s.env.Store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := intake.Reopen(rec, roleFrom(r), string(roleFrom(r)), time.Now().UTC()); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err := s.env.Store.UpdateCase(r.Context(), *rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) listAgencies(w http.ResponseWriter, r *http.Request) {
	agencies, err := s.env.Store.ListAgencies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agencies)
}

func (s *apiServer) upsertAgency(w http.ResponseWriter, r *http.Request) {
	var a model.Agency
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if a.Name == "" {
		writeError(w, http.StatusBadRequest, "agency name is required")
		return
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = model.AgencyOnboarding
	}
	if err := s.env.Store.UpsertAgency(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *apiServer) rankedAgencies(w http.ResponseWriter, r *http.Request) {
	agencies, err := s.env.Store.ListAgencies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.RankAgencies(agencies))
}

type submitRequest struct {
	AgencyID  string           `json:"agency_id,omitempty"`
	ReceiptID string           `json:"receipt_id,omitempty"`
	Rows      []model.DraftRow `json:"rows"`
}

// newAPISession builds the one-shot intake session for an API submission.
// Rows keep the origin the caller declared.
func newAPISession(role model.Role, req submitRequest) *intake.Session {
	session := intake.NewSession(role)
	session.TargetAgencyID = req.AgencyID
	session.Drafts.AddRows(req.Rows)
	return session
}

func (s *apiServer) submitIntake(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "no rows to submit")
		return
	}

	// A caller-supplied receipt ID makes the submission idempotent across
	// retries and restarts.
	if req.ReceiptID != "" {
		exists, err := s.env.Store.ReceiptExists(r.Context(), req.ReceiptID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if exists {
			writeError(w, http.StatusConflict, "receipt "+req.ReceiptID+" already recorded")
			return
		}
	}

	session := newAPISession(roleFrom(r), req)
	coord := s.env.newCoordinator(session)
	receipt, err := coord.Submit(r.Context(), session.Drafts.Rows())
	if err != nil && len(receipt.Cases) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, receipt)
		return
	}
	if req.ReceiptID != "" {
		receipt.ID = req.ReceiptID
	}
	ids := make([]string, 0, len(receipt.Cases))
	for _, c := range receipt.Cases {
		ids = append(ids, c.ID)
	}
	if rerr := s.env.Store.RecordReceipt(r.Context(), receipt.ID, ids); rerr != nil {
		zap.L().Error("record receipt failed", zap.Error(rerr))
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *apiServer) slaPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.env.Policy)
}

// slaLoop runs the breach evaluator on a fixed cadence until ctx is done.
func (s *apiServer) slaLoop(ctx context.Context, interval time.Duration) {
	monitor := sla.NewMonitor(s.env.Policy)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cases, err := loadCases(ctx, s.env.Store, store.CaseFilter{})
			if err != nil {
				zap.L().Error("sla sweep: load cases failed", zap.Error(err))
				continue
			}
			breaches := monitor.Evaluate(cases, now.UTC())
			breached := make(map[string]bool, len(breaches))
			for _, b := range breaches {
				breached[b.CaseID] = true
			}
			for _, c := range cases {
				if !breached[c.ID] {
					continue
				}
				if err := s.env.Store.UpdateCase(ctx, *c); err != nil {
					zap.L().Error("sla sweep: persist failed",
						zap.String("case_id", c.ID), zap.Error(err))
				}
			}
			if len(breaches) > 0 {
				zap.L().Info("sla sweep complete", zap.Int("breaches", len(breaches)))
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().DurationVar(&slaInterval, "sla-interval", time.Hour, "SLA breach sweep cadence (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
