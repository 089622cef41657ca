package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"quiz-gateway/internal/app"
	"quiz-gateway/internal/domain"
	"quiz-gateway/internal/identity"
)

type contextKey string

const claimsKey contextKey = "identityClaims"

// Handler wires the attempt service and catalog to the presentational
// shell: JSON endpoints for browsing, a websocket for the live attempt.
type Handler struct {
	attempts *app.AttemptService
	catalog  *app.Catalog
	verifier *identity.Verifier
	log      *zap.Logger
	ws       *wsHandler
}

func NewHandler(attempts *app.AttemptService, catalog *app.Catalog, verifier *identity.Verifier, log *zap.Logger) *Handler {
	h := &Handler{
		attempts: attempts,
		catalog:  catalog,
		verifier: verifier,
		log:      log,
	}
	h.ws = newWSHandler(attempts, log)
	return h
}

// Router builds the HTTP surface. Browser origins are restricted to
// allowedOrigins; an empty list allows none but same-origin.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.authMiddleware)
	api.HandleFunc("/quizzes", h.handleCatalog).Methods(http.MethodGet)
	api.HandleFunc("/quizzes/refresh", h.handleCatalogRefresh).Methods(http.MethodPost)

	// auth happens inside the ws handshake; browsers cannot set headers here
	r.HandleFunc("/ws/attempt", h.serveWS)

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(r)
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid token format", http.StatusUnauthorized)
			return
		}
		claims, err := h.verifier.Verify(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) (identity.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(identity.Claims)
	return claims, ok
}

// quizCard is the catalog listing entry. Question content and correctness
// flags stay server-side; the shell only needs display metadata.
type quizCard struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	Difficulty       domain.Difficulty `json:"difficulty"`
	Icon             string            `json:"icon"`
	Color            string            `json:"color"`
	QuestionCount    int               `json:"questionCount"`
	TimeLimitSeconds int               `json:"timeLimitSeconds"`
	EstimatedSeconds int               `json:"estimatedSeconds"`
}

type catalogResponse struct {
	State   domain.CatalogState `json:"state"`
	Error   string              `json:"error,omitempty"`
	Quizzes []quizCard          `json:"quizzes"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	state, quizzes, errMsg := h.catalog.State()
	resp := catalogResponse{
		State:   state,
		Error:   errMsg,
		Quizzes: make([]quizCard, 0, len(quizzes)),
	}
	for _, quiz := range quizzes {
		resp.Quizzes = append(resp.Quizzes, quizCard{
			ID:               quiz.ID,
			Title:            quiz.Title,
			Description:      quiz.Description,
			Category:         quiz.Category,
			Difficulty:       quiz.Difficulty,
			Icon:             quiz.Icon,
			Color:            quiz.Color,
			QuestionCount:    len(quiz.Questions),
			TimeLimitSeconds: quiz.TimeLimitSeconds,
			EstimatedSeconds: quiz.EstimatedSeconds(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCatalogRefresh retries a failed catalog load (the dismissible
// banner's retry action).
func (h *Handler) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	_ = h.catalog.Refresh(r.Context())
	h.handleCatalog(w, r)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		authHeader := r.Header.Get("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			raw = parts[1]
		}
	}
	if raw == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.verifier.Verify(raw)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	h.ws.serve(w, r, claims)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
