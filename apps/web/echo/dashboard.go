package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
)

func registerDashboardRoutes(s *Server, g *echo.Group) {
	g.GET("/", s.dashboard)
}

// dashboard shows a student their documents, or a teacher the student roster.
func (s *Server) dashboard(ctx echo.Context) error {
	prof := getContextProfile(ctx)
	switch prof.Role {
	case user.RoleStudent:
		return s.studentDashboard(ctx, prof)
	case user.RoleTeacher:
		return s.teacherDashboard(ctx, prof)
	default:
		return core.NewError(core.ErrPermissionDenied, "unknown role")
	}
}

func (s *Server) studentDashboard(ctx echo.Context, prof user.Profile) error {
	rctx := ctx.Request().Context()

	subs, err := s.deps.SubmissionSvc.ListFor(rctx, prof, prof.UserID)
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	cats, err := s.deps.CategorySvc.List(rctx, true)
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}

	p := s.newPage(ctx, "My Documents", echo.Map{"documents": subs, "categories": cats})
	return s.render(ctx, http.StatusOK, "student_dashboard", p)
}

func (s *Server) teacherDashboard(ctx echo.Context, prof user.Profile) error {
	search := ctx.QueryParam("search")
	students, err := s.deps.UserSvc.QueryStudents(ctx.Request().Context(), prof, search)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	p := s.newPage(ctx, "Students", echo.Map{"students": students, "search": search})
	return s.render(ctx, http.StatusOK, "teacher_dashboard", p)
}
