package echoweb

import (
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/dossier/core"
)

const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashError   = "error"
)

var flashLevels = []string{flashSuccess, flashInfo, flashError}

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

// flashStore keeps pending flash messages in a signed cookie.
type flashStore struct {
	store *sessions.CookieStore
	name  string
}

func newFlashStore(conf *core.Config) *flashStore {
	store := sessions.NewCookieStore([]byte(conf.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(conf.Server.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
	}
	return &flashStore{store: store, name: conf.Server.FlashCookie}
}

// session never fails: a tampered or stale cookie just yields an empty session.
func (fs *flashStore) session(ctx echo.Context) *sessions.Session {
	sess, _ := fs.store.Get(ctx.Request(), fs.name)
	return sess
}

func (fs *flashStore) add(ctx echo.Context, level, msg string) {
	sess := fs.session(ctx)
	sess.AddFlash(msg, level)
	if err := sess.Save(ctx.Request(), ctx.Response()); err != nil {
		ctx.Logger().Errorf("saving flash: %v", err)
	}
}

// pop returns and clears the pending messages.
func (fs *flashStore) pop(ctx echo.Context) []Flash {
	sess := fs.session(ctx)

	var flashes []Flash
	for _, level := range flashLevels {
		for _, msg := range sess.Flashes(level) {
			if s, ok := msg.(string); ok {
				flashes = append(flashes, Flash{Level: level, Message: s})
			}
		}
	}
	if len(flashes) > 0 && !ctx.Response().Committed {
		if err := sess.Save(ctx.Request(), ctx.Response()); err != nil {
			ctx.Logger().Errorf("clearing flashes: %v", err)
		}
	}
	return flashes
}
