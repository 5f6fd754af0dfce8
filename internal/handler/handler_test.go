package handler

import (
	"context"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/weblogd/weblogd/internal/config"
	"github.com/weblogd/weblogd/internal/domain"
	"github.com/weblogd/weblogd/internal/service"
)

// --- Mocks ---

type MockRegistrationService struct {
	PrepareFunc  func(defaults service.PrepareDefaults, identity *domain.AuthenticatedIdentity) service.PrepareResult
	SaveFunc     func(req domain.RegistrationRequest, identity *domain.AuthenticatedIdentity) service.SaveResult
	ActivateFunc func(code string) service.ActivateResult
}

func (m *MockRegistrationService) Prepare(defaults service.PrepareDefaults, identity *domain.AuthenticatedIdentity) service.PrepareResult {
	if m.PrepareFunc != nil {
		return m.PrepareFunc(defaults, identity)
	}
	return service.PrepareResult{Outcome: service.OutcomeInput}
}

func (m *MockRegistrationService) Save(req domain.RegistrationRequest, identity *domain.AuthenticatedIdentity) service.SaveResult {
	if m.SaveFunc != nil {
		return m.SaveFunc(req, identity)
	}
	return service.SaveResult{Outcome: service.OutcomeSuccess, User: domain.User{Id: 1}}
}

func (m *MockRegistrationService) Activate(code string) service.ActivateResult {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(code)
	}
	return service.ActivateResult{Status: service.ActivationActive}
}

type MockSpamScorer struct {
	ScoreFunc func(ctx context.Context, comment domain.Comment, weblog domain.Weblog, entry domain.Entry) (int, []string)
}

func (m *MockSpamScorer) Score(ctx context.Context, comment domain.Comment, weblog domain.Weblog, entry domain.Entry) (int, []string) {
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, comment, weblog, entry)
	}
	return service.ScoreClean, nil
}

type MockCommentStorage struct {
	CreateCommentFunc func(comment domain.Comment) (domain.CommentId, error)
}

func (m *MockCommentStorage) CreateComment(comment domain.Comment) (domain.CommentId, error) {
	if m.CreateCommentFunc != nil {
		return m.CreateCommentFunc(comment)
	}
	return 1, nil
}

type MockLoginStorage struct {
	UserByUsernameFunc func(username domain.Username) (domain.User, error)
}

func (m *MockLoginStorage) UserByUsername(username domain.Username) (domain.User, error) {
	if m.UserByUsernameFunc != nil {
		return m.UserByUsernameFunc(username)
	}
	return domain.User{}, nil
}

type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

type MockJwtService struct {
	NewTokenFunc    func(user domain.User) (string, error)
	DecodeTokenFunc func(jwtStr string) (*gojwt.Token, error)
}

func (m *MockJwtService) NewToken(user domain.User) (string, error) {
	if m.NewTokenFunc != nil {
		return m.NewTokenFunc(user)
	}
	return "token-123", nil
}

func (m *MockJwtService) DecodeToken(jwtStr string) (*gojwt.Token, error) {
	if m.DecodeTokenFunc != nil {
		return m.DecodeTokenFunc(jwtStr)
	}
	return &gojwt.Token{Valid: true}, nil
}

type testDeps struct {
	registration *MockRegistrationService
	spam         *MockSpamScorer
	comments     *MockCommentStorage
	users        *MockLoginStorage
	health       *MockHealthChecker
	jwt          *MockJwtService
}

func newTestHandler() (*Handler, *testDeps) {
	deps := &testDeps{
		registration: &MockRegistrationService{},
		spam:         &MockSpamScorer{},
		comments:     &MockCommentStorage{},
		users:        &MockLoginStorage{},
		health:       &MockHealthChecker{},
		jwt:          &MockJwtService{},
	}
	cfg := &config.Config{}
	return New(deps.registration, deps.spam, deps.comments, deps.users, deps.health, deps.jwt, cfg), deps
}
