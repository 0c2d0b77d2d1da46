package category

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/access"
	"github.com/trezcool/dossier/core/user"
)

var (
	// errors
	ErrNotFound   = core.NewError(core.ErrNotFound, "category not found")
	ErrNameExists = core.NewError(core.ErrDuplicateField, "a category with this name already exists")
	ErrInactive   = core.NewError(core.ErrInvalidFormat, "this category is not accepting documents")
)

type (
	Repository interface {
		// CreateCategory returns ErrNameExists when the store rejects a duplicate name.
		CreateCategory(ctx context.Context, cat Category, exec ...core.DBExecutor) (Category, error)
		NameExists(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error)
		QueryCategories(ctx context.Context, activeOnly bool, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Category, error)
		GetCategoryByID(ctx context.Context, id int, exec ...core.DBExecutor) (Category, error)
		// ToggleCategory flips is_active in a single write and returns the updated row.
		ToggleCategory(ctx context.Context, id int, exec ...core.DBExecutor) (Category, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(translator, "translator"),
	).CheckAndPanic()

	return &Service{repo: repo, validate: validate, translator: translator}
}

// Create adds an active category owned by actor.
func (svc *Service) Create(ctx context.Context, actor user.Profile, nc NewCategory) (Category, error) {
	if err := access.Authorize(actor.Role, access.ManageCategories); err != nil {
		return Category{}, err
	}

	nc.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, nc); err != nil {
		return Category{}, err
	}
	exists, err := svc.repo.NameExists(ctx, nc.Name)
	if err != nil {
		return Category{}, errors.Wrap(err, "checking category name")
	}
	if exists {
		return Category{}, core.NewFieldError("name", ErrNameExists)
	}

	cat, err := svc.repo.CreateCategory(ctx, Category{
		Name:        nc.Name,
		Description: nc.Description,
		IsActive:    true,
		CreatedBy:   actor.UserID,
		CreatedAt:   NowFunc(),
	})
	switch err {
	case nil:
		return cat, nil
	case ErrNameExists:
		return Category{}, core.NewFieldError("name", err)
	default:
		return Category{}, errors.Wrap(err, "creating category")
	}
}

// List returns every category, newest first, or only the active ones ordered by name.
func (svc *Service) List(ctx context.Context, activeOnly bool) ([]Category, error) {
	ordering := []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}
	if activeOnly {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	return svc.repo.QueryCategories(ctx, activeOnly, ordering)
}

func (svc *Service) Get(ctx context.Context, id int) (Category, error) {
	return svc.repo.GetCategoryByID(ctx, id)
}

// GetActive returns the category only when it accepts submissions.
func (svc *Service) GetActive(ctx context.Context, id int) (Category, error) {
	cat, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if !cat.IsActive {
		return Category{}, ErrInactive
	}
	return cat, nil
}

// Toggle flips the active flag of the category. Any teacher may toggle any category.
func (svc *Service) Toggle(ctx context.Context, actor user.Profile, id int) (Category, error) {
	if err := access.Authorize(actor.Role, access.ToggleCategory); err != nil {
		return Category{}, err
	}
	return svc.repo.ToggleCategory(ctx, id)
}
