package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/weblogd/weblogd/internal/config"
	"github.com/weblogd/weblogd/internal/domain"
	jwt_internal "github.com/weblogd/weblogd/internal/jwt"
	"github.com/weblogd/weblogd/internal/logger"
	"github.com/weblogd/weblogd/internal/service"
)

// RegistrationService is the registration workflow consumed by handlers.
type RegistrationService interface {
	Prepare(defaults service.PrepareDefaults, identity *domain.AuthenticatedIdentity) service.PrepareResult
	Save(req domain.RegistrationRequest, identity *domain.AuthenticatedIdentity) service.SaveResult
	Activate(code string) service.ActivateResult
}

// SpamScorer scores a submitted comment; the second return value is the
// list of user-facing messages (empty for clean comments).
type SpamScorer interface {
	Score(ctx context.Context, comment domain.Comment, weblog domain.Weblog, entry domain.Entry) (int, []string)
}

type CommentStorage interface {
	CreateComment(comment domain.Comment) (domain.CommentId, error)
}

// LoginStorage is the account lookup needed by Login.
type LoginStorage interface {
	UserByUsername(username domain.Username) (domain.User, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	registration RegistrationService
	spam         SpamScorer
	comments     CommentStorage
	users        LoginStorage
	health       HealthChecker
	jwt          jwt_internal.JwtService
	cfg          *config.Config
}

func New(registration RegistrationService, spam SpamScorer, comments CommentStorage, users LoginStorage, health HealthChecker, jwt jwt_internal.JwtService, cfg *config.Config) *Handler {
	return &Handler{
		registration: registration,
		spam:         spam,
		comments:     comments,
		users:        users,
		health:       health,
		jwt:          jwt,
		cfg:          cfg,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}
