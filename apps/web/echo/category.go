package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core/access"
	"github.com/trezcool/dossier/core/category"
)

const categoriesPath = "/categories/"

type categoryHandlers struct {
	s *Server
}

func registerCategoryRoutes(s *Server, g *echo.Group) {
	h := categoryHandlers{s: s}

	cg := g.Group(categoriesPath, h.teacherOnly)
	cg.GET("", h.list)
	cg.POST("", h.create)

	g.GET(categoriesPath+"toggle/:id/", h.toggle)
	g.POST(categoriesPath+"toggle/:id/", h.toggle)
}

func (h categoryHandlers) teacherOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := access.Authorize(getContextProfile(ctx).Role, access.ManageCategories); err != nil {
			return err
		}
		return next(ctx)
	}
}

func (h categoryHandlers) render(ctx echo.Context, p *Page) error {
	cats, err := h.s.deps.CategorySvc.List(ctx.Request().Context(), false)
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	p.Data = echo.Map{"categories": cats}
	return h.s.render(ctx, http.StatusOK, "categories", p)
}

func (h categoryHandlers) list(ctx echo.Context) error {
	return h.render(ctx, h.s.newPage(ctx, "Manage Categories", nil))
}

func (h categoryHandlers) create(ctx echo.Context) error {
	var data category.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}

	if _, err := h.s.deps.CategorySvc.Create(ctx.Request().Context(), getContextProfile(ctx), data); err != nil {
		p := h.s.newPage(ctx, "Manage Categories", nil)
		if !p.setErrors(err) {
			return errors.Wrap(err, "creating category")
		}
		p.Form["name"] = data.Name
		p.Form["description"] = data.Description
		p.Flashes = append(p.Flashes, Flash{Level: flashError, Message: msgInvalidForm})
		return h.render(ctx, p)
	}

	h.s.flashes.add(ctx, flashSuccess, "Category added successfully!")
	return ctx.Redirect(http.StatusFound, categoriesPath)
}

func (h categoryHandlers) toggle(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	cat, err := h.s.deps.CategorySvc.Toggle(ctx.Request().Context(), getContextProfile(ctx), id)
	if err != nil {
		return err
	}

	h.s.flashes.add(ctx, flashSuccess, fmt.Sprintf(`Category "%s" %s successfully!`, cat.Name, cat.StatusVerb()))
	return ctx.Redirect(http.StatusFound, categoriesPath)
}
