package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
)

const categoryColumns = `id, name, description, is_active, created_by, created_at`

var categoryOrderings = map[string]string{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
}

type categoryRepository struct {
	repo
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(exec core.DBExecutor) *categoryRepository {
	return &categoryRepository{repo{exec: exec}}
}

func (r categoryRepository) CreateCategory(ctx context.Context, cat category.Category, exec ...core.DBExecutor) (category.Category, error) {
	ex := r.getExec(exec)
	q := ex.Rebind(`
		INSERT INTO category (name, description, is_active, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	cat.CreatedAt = cat.CreatedAt.UTC()
	err := ex.QueryRowxContext(ctx, q, cat.Name, cat.Description, cat.IsActive, cat.CreatedBy, cat.CreatedAt).Scan(&cat.ID)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return category.Category{}, category.ErrNameExists
		}
		return category.Category{}, errors.Wrap(err, "inserting category")
	}
	return cat, nil
}

func (r categoryRepository) NameExists(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error) {
	ex := r.getExec(exec)
	var found bool
	err := ex.GetContext(ctx, &found, ex.Rebind(`SELECT EXISTS (SELECT 1 FROM category WHERE name = ?)`), name)
	if err != nil {
		return false, errors.Wrap(err, "checking category name")
	}
	return found, nil
}

func (r categoryRepository) QueryCategories(ctx context.Context, activeOnly bool, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]category.Category, error) {
	ex := r.getExec(exec)

	q := `SELECT ` + categoryColumns + ` FROM category`
	var args []interface{}
	if activeOnly {
		q += ` WHERE is_active = ?`
		args = append(args, true)
	}
	q += orderBy(ordering, categoryOrderings)

	cats := make([]category.Category, 0)
	if err := ex.SelectContext(ctx, &cats, ex.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return cats, nil
}

func (r categoryRepository) GetCategoryByID(ctx context.Context, id int, exec ...core.DBExecutor) (category.Category, error) {
	ex := r.getExec(exec)
	var cat category.Category
	err := ex.GetContext(ctx, &cat, ex.Rebind(`SELECT `+categoryColumns+` FROM category WHERE id = ?`), id)
	if err != nil {
		return category.Category{}, trapNoRowsErr(err, category.ErrNotFound, "getting category")
	}
	return cat, nil
}

func (r categoryRepository) ToggleCategory(ctx context.Context, id int, exec ...core.DBExecutor) (category.Category, error) {
	ex := r.getExec(exec)
	var cat category.Category
	q := ex.Rebind(`UPDATE category SET is_active = NOT is_active WHERE id = ? RETURNING ` + categoryColumns)
	if err := ex.GetContext(ctx, &cat, q, id); err != nil {
		return category.Category{}, trapNoRowsErr(err, category.ErrNotFound, "toggling category")
	}
	return cat, nil
}
