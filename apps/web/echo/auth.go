package echoweb

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
)

const (
	tokenContextKey   = "userToken"
	userContextKey    = "user"
	profileContextKey = "profile"

	loginPath = "/login/"
)

var errUnauthenticated = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")

// Claims identifies the logged in user. The role is not part of it: it is read from the profile on every request.
// Version must match the user's SessionVersion for the session to be valid.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Version  int    `json:"ver"`
}

type sessionManager struct {
	appName    string
	signingKey []byte
	cookie     string
	ttl        time.Duration
	secure     bool
}

func newSessionManager(conf *core.Config) *sessionManager {
	return &sessionManager{
		appName:    conf.AppName,
		signingKey: []byte(conf.SecretKey),
		cookie:     conf.Server.SessionCookie,
		ttl:        conf.Server.SessionTTL,
		secure:     conf.Server.SecureCookies,
	}
}

func (sm *sessionManager) claims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    sm.appName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(sm.ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Version:  usr.SessionVersion,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (sm *sessionManager) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString(sm.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// login sets the session cookie of usr.
func (sm *sessionManager) login(ctx echo.Context, usr user.User) error {
	claims := sm.claims(usr)
	token, err := sm.GenerateToken(claims)
	if err != nil {
		return err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     sm.cookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Unix(claims.ExpiresAt, 0),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// parse returns the claims of the request's session cookie.
func (sm *sessionManager) parse(ctx echo.Context) (*Claims, error) {
	ck, err := ctx.Cookie(sm.cookie)
	if err != nil {
		return nil, errUnauthenticated
	}
	claims := new(Claims)
	_, err = jwt.ParseWithClaims(ck.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected jwt signing method=%v", token.Header["alg"])
		}
		return sm.signingKey, nil
	})
	if err != nil {
		return nil, errUnauthenticated
	}
	return claims, nil
}

func (sm *sessionManager) logout(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sm.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// middleware rejects requests without a valid session cookie, redirecting them to the login page.
func (sm *sessionManager) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    sm.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
		TokenLookup:   "cookie:" + sm.cookie,
		ErrorHandlerWithContext: func(_ error, ctx echo.Context) error {
			sm.logout(ctx)
			return redirectToLogin(ctx)
		},
	})
}

func redirectToLogin(ctx echo.Context) error {
	if ctx.Request().Method != http.MethodGet {
		return ctx.Redirect(http.StatusFound, loginPath)
	}
	return ctx.Redirect(http.StatusFound, loginPath+"?next="+url.QueryEscape(ctx.Request().URL.RequestURI()))
}

// safeNext returns next if it is a local path, "/" otherwise.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthenticated
}

// profileMiddleware loads the session's user and profile into the context.
// Deleted or deactivated accounts and revoked sessions are sent back to the login page.
func (s *Server) profileMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		id, err := strconv.Atoi(claims.Subject)
		if err != nil {
			s.sessions.logout(ctx)
			return redirectToLogin(ctx)
		}

		rctx := ctx.Request().Context()
		usr, err := s.deps.UserSvc.GetByID(rctx, id)
		if err == user.ErrNotFound || (err == nil && (!usr.IsActive || usr.SessionVersion != claims.Version)) {
			s.sessions.logout(ctx)
			return redirectToLogin(ctx)
		}
		if err != nil {
			return errors.Wrap(err, "getting session user")
		}

		prof, created, err := s.deps.UserSvc.ResolveProfile(rctx, usr)
		if err != nil {
			return errors.Wrap(err, "resolving profile")
		}
		if created {
			s.flashes.add(ctx, flashInfo, "Profile created for your account.")
		}

		ctx.Set(userContextKey, usr)
		ctx.Set(profileContextKey, prof)
		return next(ctx)
	}
}

func getContextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(userContextKey).(user.User)
	return usr, ok
}

func getContextProfile(ctx echo.Context) user.Profile {
	prof, _ := ctx.Get(profileContextKey).(user.Profile)
	return prof
}
