package echoweb

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core/access"
	"github.com/trezcool/dossier/core/submission"
)

type submissionHandlers struct {
	s *Server
}

func registerSubmissionRoutes(s *Server, g *echo.Group) {
	h := submissionHandlers{s: s}

	g.GET("/upload/", h.uploadForm)
	g.POST("/upload/", h.upload)
	g.GET("/student/:id/", h.studentDocuments)
	g.GET("/download/:id/", h.download)
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (h submissionHandlers) uploadPage(ctx echo.Context) (*Page, error) {
	cats, err := h.s.deps.CategorySvc.List(ctx.Request().Context(), true)
	if err != nil {
		return nil, errors.Wrap(err, "listing categories")
	}
	return h.s.newPage(ctx, "Upload Document", echo.Map{"categories": cats}), nil
}

func (h submissionHandlers) uploadForm(ctx echo.Context) error {
	if err := access.Authorize(getContextProfile(ctx).Role, access.UploadSubmission); err != nil {
		return err
	}
	p, err := h.uploadPage(ctx)
	if err != nil {
		return err
	}
	p.Form["category"] = ctx.QueryParam("category")
	return h.s.render(ctx, http.StatusOK, "upload", p)
}

func (h submissionHandlers) upload(ctx echo.Context) error {
	prof := getContextProfile(ctx)
	if err := access.Authorize(prof.Role, access.UploadSubmission); err != nil {
		return err
	}

	catID, _ := strconv.Atoi(ctx.FormValue("category"))
	up := submission.NewUpload{CategoryID: catID, Notes: ctx.FormValue("notes")}

	fh, err := ctx.FormFile("document")
	switch err {
	case nil:
		var file multipart.File
		if file, err = fh.Open(); err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer file.Close()
		up.Filename, up.Size, up.Content = fh.Filename, fh.Size, file
	case http.ErrMissingFile, http.ErrNotMultipart:
	default:
		return errors.Wrap(err, "reading uploaded file")
	}

	_, created, err := h.s.deps.SubmissionSvc.Upload(ctx.Request().Context(), prof, up)
	if err != nil {
		p, pErr := h.uploadPage(ctx)
		if pErr != nil {
			return pErr
		}
		if !p.setErrors(err) {
			return errors.Wrap(err, "uploading document")
		}
		p.Form["category"] = ctx.FormValue("category")
		p.Form["notes"] = up.Notes
		p.Flashes = append(p.Flashes, Flash{Level: flashError, Message: msgInvalidForm})
		return h.s.render(ctx, http.StatusOK, "upload", p)
	}

	if created {
		h.s.flashes.add(ctx, flashSuccess, "Document uploaded successfully!")
	} else {
		h.s.flashes.add(ctx, flashSuccess, "Document updated successfully!")
	}
	return ctx.Redirect(http.StatusFound, "/")
}

func (h submissionHandlers) studentDocuments(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	prof := getContextProfile(ctx)
	rctx := ctx.Request().Context()

	student, err := h.s.deps.UserSvc.GetStudent(rctx, prof, id)
	if err != nil {
		return err
	}
	subs, err := h.s.deps.SubmissionSvc.ListFor(rctx, prof, student.ID)
	if err != nil {
		return err
	}

	p := h.s.newPage(ctx, "Documents of "+student.Username, echo.Map{"student": student, "documents": subs})
	return h.s.render(ctx, http.StatusOK, "student_documents", p)
}

func (h submissionHandlers) download(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	sub, rc, err := h.s.deps.SubmissionSvc.Open(ctx.Request().Context(), getContextProfile(ctx), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, submission.DownloadName(sub)))
	return ctx.Stream(http.StatusOK, "application/pdf", rc)
}
