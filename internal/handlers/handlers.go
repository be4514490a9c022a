package handlers

import (
	"database/sql"
	"net/http"

	"github.com/shamrockbb/social-backoffice/internal/social"
)

type Handler struct {
	db       *sql.DB
	dispatch *social.Dispatcher
	tokens   *social.TokenManager
	creds    social.CredentialStore
	audit    social.AuditLog
	drafter  social.Drafter
}

func New(db *sql.DB, dispatch *social.Dispatcher, tokens *social.TokenManager, creds social.CredentialStore, audit social.AuditLog, drafter social.Drafter) *Handler {
	return &Handler{
		db:       db,
		dispatch: dispatch,
		tokens:   tokens,
		creds:    creds,
		audit:    audit,
		drafter:  drafter,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
