package echoweb

import (
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
)

const (
	baseTemplate   = "templates/_base.gohtml"
	csrfField      = "csrf"
	csrfContextKey = "csrf"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006 15:04")
	},
}

// renderer executes one template set per page, each made of the base layout and the page.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	files, err := fs.Glob(fsys, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}

	rdr := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		if file == baseTemplate {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".gohtml")
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, baseTemplate, file)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", file)
		}
		rdr.pages[name] = tmpl
	}
	return rdr, nil
}

func (rdr *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := rdr.pages[name]
	if !ok {
		return errors.Errorf("unknown template %q", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// Page is the data every template receives.
type Page struct {
	Title     string
	User      *user.User
	Profile   *user.Profile
	Flashes   []Flash
	CSRFField string
	CSRFToken string

	Form      map[string]string // submitted values, re-displayed on errors
	Errors    map[string]string // field -> message
	NonFields []string
	Data      echo.Map
}

func (p Page) HasErrors() bool { return len(p.Errors) > 0 || len(p.NonFields) > 0 }

func (s *Server) newPage(ctx echo.Context, title string, data echo.Map) *Page {
	p := &Page{
		Title:     title,
		CSRFField: csrfField,
		Form:      make(map[string]string),
		Errors:    make(map[string]string),
		Data:      data,
	}
	if usr, ok := getContextUser(ctx); ok {
		p.User = &usr
		prof := getContextProfile(ctx)
		p.Profile = &prof
	}
	if token, ok := ctx.Get(csrfContextKey).(string); ok {
		p.CSRFToken = token
	}
	return p
}

// setErrors copies the messages of a validation error into the page and reports whether err was one.
func (p *Page) setErrors(err error) bool {
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		return false
	}
	for _, fErr := range vErr.Fields {
		if fErr.Field == "" {
			p.NonFields = append(p.NonFields, fErr.Error)
			continue
		}
		p.Errors[fErr.Field] = fErr.Error
	}
	if len(vErr.Fields) == 0 && vErr.Err != nil {
		p.NonFields = append(p.NonFields, vErr.Err.Error())
	}
	return true
}

// render pops the pending flashes into p and renders the page template name.
func (s *Server) render(ctx echo.Context, code int, name string, p *Page) error {
	p.Flashes = append(s.flashes.pop(ctx), p.Flashes...)
	return ctx.Render(code, name, p)
}
