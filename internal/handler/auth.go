package handler

import (
	"net/http"

	internal_errors "github.com/weblogd/weblogd/internal/errors"
	"github.com/weblogd/weblogd/internal/logger"
	"github.com/weblogd/weblogd/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	Username string `validate:"required" json:"username"`
	Password string `validate:"required" json:"password"`
}

// Login checks local credentials and issues a session token. Pending
// accounts (awaiting email activation) cannot log in yet.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := utils.DecodeValidate(r.Body, &creds); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	user, err := h.users.UserByUsername(creds.Username)
	if err != nil {
		// to not leak existing users
		if internal_errors.IsNotFound(err) {
			utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{
				Message:    "Invalid credentials",
				StatusCode: http.StatusUnauthorized,
			})
			return
		}
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PassHash), []byte(creds.Password)); err != nil {
		logger.Log.Error("password verification failed", "username", creds.Username, "error", err)
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized})
		return
	}

	if !user.Enabled {
		utils.WriteErrorAndStatusCode(w, &internal_errors.ErrorWithStatusCode{
			Message:    "Account not activated",
			StatusCode: http.StatusForbidden,
		})
		return
	}

	token, err := h.jwt.NewToken(user)
	if err != nil {
		logger.Log.Error("failed to create access token", "user_id", user.Id, "error", err)
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    token,
		MaxAge:   int(h.cfg.JwtTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
	})

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("You logged in"))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}
