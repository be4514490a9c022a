package handlers

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes wires every API route onto the router.
func RegisterRoutes(h *Handler, r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	r.HandleFunc("/api/social/publish", h.PublishPost).Methods("POST")
	r.HandleFunc("/api/social/publish-all", h.PublishAll).Methods("POST")
	r.HandleFunc("/api/social/drafts", h.GenerateDrafts).Methods("POST")
	r.HandleFunc("/api/social/last-post-times", h.LastPostTimes).Methods("GET")
	r.HandleFunc("/api/social/credential-status", h.CredentialStatus).Methods("GET")
	r.HandleFunc("/api/social/auth-url/{platform}", h.AuthURL).Methods("GET")

	r.HandleFunc("/oauth/callback/{platform}", h.OAuthCallback).Methods("GET")
}
