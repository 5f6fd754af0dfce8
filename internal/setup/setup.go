package setup

import (
	"github.com/weblogd/weblogd/internal/banlist"
	"github.com/weblogd/weblogd/internal/config"
	"github.com/weblogd/weblogd/internal/domain"
	"github.com/weblogd/weblogd/internal/handler"
	"github.com/weblogd/weblogd/internal/jwt"
	"github.com/weblogd/weblogd/internal/mail"
	"github.com/weblogd/weblogd/internal/middleware"
	"github.com/weblogd/weblogd/internal/service"
	"github.com/weblogd/weblogd/internal/storage/pg"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Config  *config.Config
	Storage *pg.Storage
	Handler *handler.Handler
	Session *middleware.Session
	BanList *banlist.List
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	mailer := mail.New(&cfg.Private.Email)
	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())

	registration := service.NewRegistration(storage, storage, mailer, domain.AuthMethod(cfg.Public.AuthMethod))
	spam := service.NewAkismetChecker(cfg.Private.AkismetKey, cfg.Public.AkismetURL, cfg.Public.AkismetTimeout)
	bans := banlist.New(cfg.Public.BanListPath)

	h := handler.New(registration, spam, storage, storage, storage, jwtService, cfg)

	return &Dependencies{
		Config:  cfg,
		Storage: storage,
		Handler: h,
		Session: middleware.NewSession(jwtService),
		BanList: bans,
	}, nil
}
