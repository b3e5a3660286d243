package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
	"github.com/questtrack/questtrack/core/project"
	"github.com/questtrack/questtrack/core/user"
)

type (
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		ProjectSvc     *project.Service
		ParticipantSvc *participant.Service
		Validate       *validator.Validate
		Translator     ut.Translator
	}

	Server struct {
		deps     Deps
		app      *echo.Echo
		auth     *authenticator
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf),
		metrics:  newMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.auth)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
	}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	s.app.GET("/", home)
	s.app.GET("/metrics", s.metrics.handler())
	s.app.Static(conf.Storage.ImagesURL, conf.Storage.ImagesDir)

	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)

	registerUserAPI(s.app.Group("/auth"), jwt, s.auth, s.deps.UserSvc, s.deps.Validate)

	// routes called by the quiz client and by the dashboard's read-only pages
	api := s.app.Group("/api", jwt)
	public := api
	if conf.Server.PublicParticipantAPI {
		public = s.app.Group("/api")
	}
	registerProjectAPI(api, public, s.deps.ProjectSvc, s.deps.ParticipantSvc, s.deps.Validate)
	registerParticipantAPI(api, public, s.deps.ParticipantSvc, s.deps.Validate, s.metrics)
}

// Start listens on the configured address. Listener errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to QuestTrack API!")
}
