package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/weblogd/weblogd/internal/domain"
	"github.com/weblogd/weblogd/internal/middleware"
	"github.com/weblogd/weblogd/internal/service"
	"github.com/weblogd/weblogd/internal/utils"
)

type registerResponse struct {
	Outcome          string                     `json:"outcome"`
	Errors           []string                   `json:"errors,omitempty"`
	ActivationStatus string                     `json:"activationStatus,omitempty"`
	Form             domain.RegistrationRequest `json:"form"`
}

// RegisterForm pre-fills a fresh registration form: request-context
// defaults plus, when SSO is active, the authenticated identity.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	defaults := service.PrepareDefaults{
		Locale:   requestLocale(r),
		TimeZone: time.Now().Location().String(),
	}

	result := h.registration.Prepare(defaults, middleware.IdentityFromContext(r))
	if result.Outcome == service.OutcomeDisabled {
		writeJSON(w, http.StatusForbidden, registerResponse{Outcome: result.Outcome, Errors: result.Errors})
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{Outcome: result.Outcome, Form: result.Form})
}

// Register creates the account. On success the caller's session is
// invalidated: a previously SSO-authenticated caller must re-authenticate
// under the new local identity.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegistrationRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	result := h.registration.Save(req, middleware.IdentityFromContext(r))
	switch result.Outcome {
	case service.OutcomeDisabled:
		writeJSON(w, http.StatusForbidden, registerResponse{Outcome: result.Outcome, Errors: result.Errors})
	case service.OutcomeSuccess:
		h.clearSessionCookie(w)
		writeJSON(w, http.StatusCreated, registerResponse{
			Outcome:          result.Outcome,
			ActivationStatus: result.ActivationStatus,
		})
	default:
		writeJSON(w, http.StatusBadRequest, registerResponse{Outcome: result.Outcome, Errors: result.Errors})
	}
}

type activateResponse struct {
	Status string   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// Activate flips a pending account to enabled given its emailed code.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("activationCode")

	result := h.registration.Activate(code)
	statusCode := http.StatusOK
	if result.Status != service.ActivationActive {
		statusCode = http.StatusBadRequest
	}

	writeJSON(w, statusCode, activateResponse{Status: result.Status, Errors: result.Errors})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
	})
}

// requestLocale picks the caller's preferred language tag, if any.
func requestLocale(r *http.Request) string {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return ""
	}
	first := strings.Split(accept, ",")[0]
	return strings.TrimSpace(strings.Split(first, ";")[0])
}
