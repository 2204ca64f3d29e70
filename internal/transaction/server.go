package transaction

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// identityCookieName carries the opaque caller identity issued by the
// external identity provider. This service never issues or verifies it.
const identityCookieName = "user_id"

// Server handles HTTP requests for the transaction pipeline
type Server struct {
	service     *Service
	allowOrigin string
	mux         *http.ServeMux
}

// NewServer creates a new Server with default mux. allowOrigin is the single
// trusted front-end origin allowed to make credentialed cross-origin
// requests.
func NewServer(service *Service, allowOrigin string) *Server {
	return NewServerWithMux(service, allowOrigin, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, allowOrigin string, mux *http.ServeMux) *Server {
	s := &Server{
		service:     service,
		allowOrigin: allowOrigin,
		mux:         mux,
	}
	s.registerRoutes()
	return s
}

// callerIdentity returns the opaque user identifier attached to the request,
// or empty if the request carries none
func callerIdentity(r *http.Request) string {
	cookie, err := r.Cookie(identityCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setCORSHeaders sets credentialed CORS headers for the trusted origin
func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsMiddleware adds CORS headers to responses and answers preflights
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireIdentity rejects requests with no caller identity before any
// processing happens
func (s *Server) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if callerIdentity(r) == "" {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r)
	}
}

// writeJSON writes a JSON response body with the given status
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSONError writes an error response body
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Pipeline endpoints
	s.mux.HandleFunc("POST /api/transactions/extract", s.handleExtractText)
	s.mux.HandleFunc("POST /api/transactions/interpret", s.handleInterpretText)
	s.mux.HandleFunc("POST /api/transactions", s.requireIdentity(s.handlePersistTransactions))
	s.mux.HandleFunc("GET /api/transactions", s.requireIdentity(s.handleListTransactions))

	// Account management
	s.mux.HandleFunc("GET /api/accounts", s.requireIdentity(s.handleListAccounts))
	s.mux.HandleFunc("POST /api/accounts", s.requireIdentity(s.handleAddAccount))
	s.mux.HandleFunc("DELETE /api/accounts", s.requireIdentity(s.handleDeleteAccount))

	// Generic assistant
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		s.mux.ServeHTTP(w, r)
	})(w, r)
}
