package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/shamrockbb/social-backoffice/internal/social"
)

type publishRequest struct {
	Platform   string `json:"platform"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
}

func (h *Handler) PublishPost(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.dispatch.Publish(r.Context(), req.Platform, req.Content, social.PublishOptions{Attachment: req.Attachment})
	writeJSON(w, http.StatusOK, res)
}

type publishAllRequest struct {
	Posts map[string]social.PostInput `json:"posts"`
}

func (h *Handler) PublishAll(w http.ResponseWriter, r *http.Request) {
	var req publishAllRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Posts) == 0 {
		writeError(w, http.StatusBadRequest, "posts object is required")
		return
	}

	results := h.dispatch.PublishAll(r.Context(), req.Posts)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type draftsRequest struct {
	Topic     string   `json:"topic"`
	Platforms []string `json:"platforms,omitempty"`
}

func (h *Handler) GenerateDrafts(w http.ResponseWriter, r *http.Request) {
	var req draftsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var platforms []social.Platform
	for _, key := range req.Platforms {
		p, err := social.ParsePlatform(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		platforms = append(platforms, p)
	}

	drafts, err := h.drafter.Draft(r.Context(), req.Topic, platforms)
	if err != nil {
		switch social.KindOf(err) {
		case social.KindValidation:
			writeError(w, http.StatusBadRequest, err.Error())
		case social.KindCredentialsMissing:
			writeError(w, http.StatusPreconditionFailed, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (h *Handler) LastPostTimes(w http.ResponseWriter, r *http.Request) {
	times, err := h.audit.LastPostTimes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, times)
}

func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	status := social.CredentialStatus(r.Context(), h.creds)
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) AuthURL(w http.ResponseWriter, r *http.Request) {
	p, err := social.ParsePlatform(pathVar(r, "platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.tokens.AuthURL(r.Context(), p)
	if err != nil {
		if social.KindOf(err) == social.KindUnsupported {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// OAuthCallback completes the consent flow: the signed state token binds the
// callback to the platform the flow started for, so a code can't be replayed
// against a different provider.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		writeError(w, http.StatusBadRequest, strings.TrimSpace(errParam+" "+desc))
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code parameter")
		return
	}

	statePlatform, err := h.tokens.ConsumeState(q.Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired state: "+err.Error())
		return
	}
	pathPlatform, err := social.ParsePlatform(pathVar(r, "platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if statePlatform != pathPlatform {
		writeError(w, http.StatusBadRequest, "state platform mismatch")
		return
	}

	if err := h.tokens.ExchangeCode(r.Context(), pathPlatform, code); err != nil {
		log.Printf("[OAuthCallback] exchange failed platform=%s err=%v", pathPlatform, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	log.Printf("[OAuthCallback] connected platform=%s", pathPlatform)
	writeJSON(w, http.StatusOK, map[string]any{"connected": string(pathPlatform)})
}
