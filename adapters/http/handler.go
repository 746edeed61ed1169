// Package http exposes the dispatch pipeline and the admin surface over
// HTTP. The wire protocol proper (session framing, hello exchange) is an
// external collaborator; this adapter exists for embedding-free use and
// for operations: health, metrics, policy reload and audit inspection.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/artpar/datagate/adapters/auth"
	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/config"
	"github.com/artpar/datagate/domain/policy"
	"github.com/artpar/datagate/domain/session"
	"github.com/artpar/datagate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// DispatchRequest is the JSON body of a dispatch call.
type DispatchRequest struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Payload   any    `json:"payload,omitempty"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error string `json:"error"`
}

// Handler wraps the dispatcher and admin operations for HTTP.
type Handler struct {
	dispatcher *app.Dispatcher
	tokens     *auth.TokenService
	policies   *config.PolicyHolder
	audit      ports.AuditStore
	clock      ports.Clock
	idGen      ports.IDGenerator
	logger     zerolog.Logger

	// adminTokenHash is the bcrypt hash guarding mutating admin routes.
	// Empty disables them.
	adminTokenHash string

	metricsEnabled bool
}

// HandlerDeps contains dependencies for the HTTP handler.
type HandlerDeps struct {
	Dispatcher *app.Dispatcher
	Tokens     *auth.TokenService
	Policies   *config.PolicyHolder
	Audit      ports.AuditStore
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     zerolog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(deps HandlerDeps, adminTokenHash string, metricsEnabled bool) *Handler {
	return &Handler{
		dispatcher:     deps.Dispatcher,
		tokens:         deps.Tokens,
		policies:       deps.Policies,
		audit:          deps.Audit,
		clock:          deps.Clock,
		idGen:          deps.IDGen,
		logger:         deps.Logger,
		adminTokenHash: adminTokenHash,
		metricsEnabled: metricsEnabled,
	}
}

// Router builds the chi router for the handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if h.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/v1/dispatch", h.handleDispatch)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdminToken)
		r.Post("/policy/reload", h.handlePolicyReload)
		r.Get("/audit/recent", h.handleAuditRecent)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDispatch authenticates the caller, builds a per-request session
// and runs the call through the pipeline. HTTP status follows the
// envelope status; the envelope itself is always returned as JSON.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: "invalid session token"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20)) // 4MB limit
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "read body"})
		return
	}
	var req DispatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "malformed dispatch request"})
		return
	}

	sess := session.New(h.idGen.New(), claims.Principal(), claims.PrincipalClass, h.clock.Now())
	res := h.dispatcher.Dispatch(r.Context(), sess, policy.Operation(req.Operation), req.Path, req.Payload)

	writeJSON(w, statusCode(res.Status), res)
}

func (h *Handler) handlePolicyReload(w http.ResponseWriter, _ *http.Request) {
	if h.policies == nil {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "no reloadable policy configured"})
		return
	}
	if err := h.policies.Reload(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (h *Handler) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "audit store not configured"})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: "query audit store"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// requireAdminToken guards mutating admin routes with a bearer token
// checked against a bcrypt hash from configuration.
func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminTokenHash == "" {
			writeJSON(w, http.StatusForbidden, ErrorBody{Error: "admin surface disabled"})
			return
		}
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: "missing admin token"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(h.adminTokenHash), []byte(token)) != nil {
			h.logger.Warn().Str("remote", r.RemoteAddr).Msg("rejected admin token")
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):]
	}
	return ""
}

// statusCode maps envelope exit statuses onto HTTP status codes.
func statusCode(s app.Status) int {
	switch s {
	case app.StatusOK:
		return http.StatusOK
	case app.StatusNotFound:
		return http.StatusNotFound
	case app.StatusValidationFailed:
		return http.StatusUnprocessableEntity
	case app.StatusAccessDenied:
		return http.StatusForbidden
	case app.StatusCallbackError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
