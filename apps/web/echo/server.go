package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
	"github.com/trezcool/dossier/core/submission"
	"github.com/trezcool/dossier/core/user"
	appfs "github.com/trezcool/dossier/fs"
)

type (
	// Pinger reports whether the relational store is reachable.
	Pinger interface {
		PingContext(ctx context.Context) error
	}

	Deps struct {
		Conf          *core.Config
		Logger        core.Logger
		DB            Pinger // optional
		UserSvc       *user.Service
		CategorySvc   *category.Service
		SubmissionSvc *submission.Service
	}

	Server struct {
		*http.Server
		app      *echo.Echo
		deps     *Deps
		sessions *sessionManager
		flashes  *flashStore
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps *Deps) (*Server, error) {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps, "deps"),
		vala.IsNotNil(deps.Conf, "deps.Conf"),
		vala.IsNotNil(deps.Logger, "deps.Logger"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.CategorySvc, "deps.CategorySvc"),
		vala.IsNotNil(deps.SubmissionSvc, "deps.SubmissionSvc"),
	).CheckAndPanic()

	rdr, err := newRenderer(appfs.FS)
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}

	conf := deps.Conf
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		sessions: newSessionManager(conf),
		flashes:  newFlashStore(conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.Server = &http.Server{
		Addr:         conf.Server.Address,
		Handler:      s.app,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
	}
	s.app.Renderer = rdr
	s.setup()
	return s, nil
}

func skipNonPages(ctx echo.Context) bool {
	p := ctx.Request().URL.Path
	return p == healthPath || strings.HasPrefix(p, staticPrefix)
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.ERROR)
	s.app.HTTPErrorHandler = s.newAppHTTPErrorHandler()

	s.app.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper:      skipNonPages,
		RedirectCode: http.StatusMovedPermanently,
	}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.MaxUploadSize > 0 {
		s.app.Use(middleware.BodyLimit(strconv.FormatInt(conf.Server.MaxUploadSize, 10) + "B"))
	}
	if !conf.Server.DisableCSRF {
		s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			Skipper:        skipNonPages,
			TokenLookup:    "form:" + csrfField,
			ContextKey:     csrfContextKey,
			CookieName:     "csrftoken",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   conf.Server.SecureCookies,
		}))
	}

	s.app.GET(healthPath, s.health)
	s.app.GET(staticPrefix+"*", echo.WrapHandler(http.StripPrefix(staticPrefix, http.FileServer(http.FS(appfs.Assets())))))

	registerAccountRoutes(s)

	authed := s.app.Group("", s.sessions.middleware(), s.profileMiddleware)
	registerDashboardRoutes(s, authed)
	registerSubmissionRoutes(s, authed)
	registerCategoryRoutes(s, authed)
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

const (
	healthPath   = "/healthz"
	staticPrefix = "/static/"
)

func (s *Server) health(ctx echo.Context) error {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctx.Request().Context()); err != nil {
			s.deps.Logger.Error("health check: database unreachable", err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.deps.Conf.Build})
}
