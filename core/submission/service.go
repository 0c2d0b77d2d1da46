package submission

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/access"
	"github.com/trezcool/dossier/core/category"
	"github.com/trezcool/dossier/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewError(core.ErrNotFound, "document not found")
	ErrDocumentMissing = core.NewError(core.ErrNotFound, "the stored file for this document is missing")
	ErrNotPDF          = core.NewError(core.ErrInvalidFormat, "only PDF files are allowed")
	ErrEmptyFile       = core.NewError(core.ErrInvalidFormat, "the submitted file is empty")
	ErrNoFile          = core.NewError(core.ErrInvalidFormat, "no file was submitted")
	ErrInvalidCategory = core.NewError(core.ErrInvalidFormat, "select a valid choice, that category is not available")
)

type (
	Repository interface {
		GetSubmissionFor(ctx context.Context, studentID, categoryID int, exec ...core.DBExecutor) (Submission, error)
		// UpsertSubmission inserts sub or, when (student, category) already has a row, replaces its
		// document, filename, notes and updated_at. uploaded_at is never overwritten.
		UpsertSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions returns the student's submissions ordered by category name.
		QuerySubmissions(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]Submission, error)
		GetSubmissionByID(ctx context.Context, id int, exec ...core.DBExecutor) (Submission, error)
	}

	// Categories looks up the category a document is uploaded to.
	Categories interface {
		GetActive(ctx context.Context, id int) (category.Category, error)
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		categories Categories
		blobs      core.BlobStore
		logger     core.Logger
	}
)

func NewService(repo Repository, tx core.Transactor, categories Categories, blobs core.BlobStore, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(categories, "categories"),
		vala.IsNotNil(blobs, "blobs"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, tx: tx, categories: categories, blobs: blobs, logger: logger}
}

func newDocumentKey() string {
	return DocumentsPrefix + uuid.New().String() + ".pdf"
}

// Upload stores the student's document for a category, replacing the previous one if any.
// created reports whether no document existed before for that category.
func (svc *Service) Upload(ctx context.Context, actor user.Profile, up NewUpload) (sub Submission, created bool, err error) {
	if err = access.Authorize(actor.Role, access.UploadSubmission); err != nil {
		return Submission{}, false, err
	}

	// validate everything before touching any store
	if up.Content == nil || up.Filename == "" {
		return Submission{}, false, core.NewFieldError("document", ErrNoFile)
	}
	if !core.HasExt(up.Filename, ".pdf") {
		return Submission{}, false, core.NewFieldError("document", ErrNotPDF)
	}
	if up.Size <= 0 {
		return Submission{}, false, core.NewFieldError("document", ErrEmptyFile)
	}
	cat, err := svc.categories.GetActive(ctx, up.CategoryID)
	switch err {
	case nil:
	case category.ErrNotFound, category.ErrInactive:
		return Submission{}, false, core.NewFieldError("category", ErrInvalidCategory)
	default:
		return Submission{}, false, errors.Wrap(err, "getting category")
	}

	key := newDocumentKey()
	if err = svc.blobs.Put(ctx, key, up.Content); err != nil {
		return Submission{}, false, errors.Wrap(err, "storing document")
	}

	var prevKey string
	now := NowFunc()
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		prev, err := svc.repo.GetSubmissionFor(ctx, actor.UserID, cat.ID, exec)
		switch err {
		case nil:
			prevKey = prev.Document
		case ErrNotFound:
			created = true
		default:
			return errors.Wrap(err, "getting previous document")
		}

		sub, err = svc.repo.UpsertSubmission(ctx, Submission{
			StudentID:  actor.UserID,
			CategoryID: cat.ID,
			Document:   key,
			Filename:   core.CleanString(up.Filename),
			Notes:      core.CleanString(up.Notes),
			UploadedAt: now,
			UpdatedAt:  now,
		}, exec)
		return errors.Wrap(err, "saving document")
	})
	if err != nil {
		if dErr := svc.blobs.Delete(ctx, key); dErr != nil {
			svc.logger.Error(fmt.Sprintf("removing unsaved document %q: %v", key, dErr), dErr)
		}
		return Submission{}, false, err
	}
	sub.CategoryName = cat.Name

	if prevKey != "" && prevKey != key {
		if err := svc.blobs.Delete(ctx, prevKey); err != nil {
			// the row already points at the new document: the old blob is only an orphan
			svc.logger.Error(fmt.Sprintf("removing replaced document %q: %v", prevKey, err), err)
		}
	}
	return sub, created, nil
}

// ListFor returns the submissions of a student. Students may only list their own.
func (svc *Service) ListFor(ctx context.Context, actor user.Profile, studentID int) ([]Submission, error) {
	switch actor.Role {
	case user.RoleStudent:
		if err := access.Authorize(actor.Role, access.ViewOwnSubmissions); err != nil {
			return nil, err
		}
		if studentID != actor.UserID {
			return nil, core.NewError(core.ErrPermissionDenied, "students may only view their own documents")
		}
	case user.RoleTeacher:
		if err := access.Authorize(actor.Role, access.ViewStudentSubmissions); err != nil {
			return nil, err
		}
	default:
		return nil, core.NewError(core.ErrPermissionDenied, "unknown role")
	}
	return svc.repo.QuerySubmissions(ctx, studentID)
}

func (svc *Service) Get(ctx context.Context, id int) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

// Open returns the submission and its content if actor may download it.
// The caller must close the returned reader.
func (svc *Service) Open(ctx context.Context, actor user.Profile, id int) (Submission, io.ReadCloser, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, nil, err
	}
	if err = access.AuthorizeDownload(actor.Role, actor.UserID, sub.StudentID); err != nil {
		return Submission{}, nil, err
	}
	rc, err := svc.ReadBytes(ctx, sub)
	if err != nil {
		return Submission{}, nil, err
	}
	return sub, rc, nil
}

// ReadBytes streams the stored document of sub, or returns ErrDocumentMissing.
func (svc *Service) ReadBytes(ctx context.Context, sub Submission) (io.ReadCloser, error) {
	rc, err := svc.blobs.Open(ctx, sub.Document)
	if err != nil {
		if errors.Is(err, core.ErrBlobNotFound) {
			return nil, ErrDocumentMissing
		}
		return nil, errors.Wrap(err, "opening document")
	}
	return rc, nil
}
