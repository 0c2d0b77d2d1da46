package echoweb

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core/user"
)

const msgInvalidForm = "Please correct the errors below."

type accountHandlers struct {
	s *Server
}

func registerAccountRoutes(s *Server) {
	h := accountHandlers{s: s}

	s.app.GET(loginPath, h.loginForm)
	s.app.POST(loginPath, h.login)
	s.app.GET("/logout/", h.logout)
	s.app.GET("/register/", h.registerForm)
	s.app.POST("/register/", h.register)
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string `form:"username"` // username or email
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (h accountHandlers) loginPage(ctx echo.Context, data LoginRequest) *Page {
	p := h.s.newPage(ctx, "Login", echo.Map{"next": safeNext(data.Next)})
	p.Form["username"] = data.Username
	return p
}

func (h accountHandlers) loginForm(ctx echo.Context) error {
	return h.s.render(ctx, http.StatusOK, "login", h.loginPage(ctx, LoginRequest{Next: ctx.QueryParam("next")}))
}

func (h accountHandlers) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if data.Next == "" {
		data.Next = ctx.QueryParam("next")
	}

	p := h.loginPage(ctx, data)
	if data.Username == "" {
		p.Errors["username"] = "this field is required"
	}
	if data.Password == "" {
		p.Errors["password"] = "this field is required"
	}
	if p.HasErrors() {
		return h.s.render(ctx, http.StatusOK, "login", p)
	}

	usr, err := h.s.deps.UserSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	switch err {
	case nil:
	case user.ErrInvalidCredential, user.ErrAccountInactive:
		p.NonFields = append(p.NonFields, err.Error())
		return h.s.render(ctx, http.StatusOK, "login", p)
	default:
		return errors.Wrap(err, "authenticating")
	}

	if err = h.s.sessions.login(ctx, usr); err != nil {
		return errors.Wrap(err, "starting session")
	}
	return ctx.Redirect(http.StatusFound, safeNext(data.Next))
}

// logout revokes every session of the user, including copies of the cookie.
func (h accountHandlers) logout(ctx echo.Context) error {
	if claims, err := h.s.sessions.parse(ctx); err == nil {
		if id, err := strconv.Atoi(claims.Subject); err == nil {
			rctx := ctx.Request().Context()
			usr, err := h.s.deps.UserSvc.GetByID(rctx, id)
			if err == nil {
				err = h.s.deps.UserSvc.Logout(rctx, &usr)
			}
			if err != nil && err != user.ErrNotFound {
				return errors.Wrap(err, "logging out")
			}
		}
	}
	h.s.sessions.logout(ctx)
	h.s.flashes.add(ctx, flashSuccess, "You have been logged out successfully.")
	return ctx.Redirect(http.StatusFound, loginPath)
}

func registerPage(s *Server, ctx echo.Context, data user.NewStudent) *Page {
	p := s.newPage(ctx, "Register", nil)
	p.Form["username"] = data.Username
	p.Form["email"] = data.Email
	p.Form["roll_number"] = data.RollNumber
	return p
}

func (h accountHandlers) registerForm(ctx echo.Context) error {
	return h.s.render(ctx, http.StatusOK, "register", registerPage(h.s, ctx, user.NewStudent{}))
}

func (h accountHandlers) register(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	usr, err := h.s.deps.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		p := registerPage(h.s, ctx, data)
		if !p.setErrors(err) {
			return errors.Wrap(err, "registering student")
		}
		p.Flashes = append(p.Flashes, Flash{Level: flashError, Message: msgInvalidForm})
		return h.s.render(ctx, http.StatusOK, "register", p)
	}

	if err = h.s.sessions.login(ctx, usr); err != nil {
		return errors.Wrap(err, "starting session")
	}
	h.s.flashes.add(ctx, flashSuccess, "Registration successful! Welcome to the system.")
	return ctx.Redirect(http.StatusFound, "/")
}
