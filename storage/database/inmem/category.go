package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
)

type categoryRepository struct {
	db *DB
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *DB) *categoryRepository {
	return &categoryRepository{db: db}
}

func (repo *categoryRepository) nameExists(name string) bool {
	for _, cat := range repo.db.categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}

func (repo *categoryRepository) CreateCategory(_ context.Context, cat category.Category, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.nameExists(cat.Name) {
		return category.Category{}, category.ErrNameExists
	}
	cat.ID = repo.db.nextID("category")
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *categoryRepository) NameExists(_ context.Context, name string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.nameExists(name), nil
}

func (repo *categoryRepository) QueryCategories(_ context.Context, activeOnly bool, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]category.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cats := make([]category.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		if activeOnly && !cat.IsActive {
			continue
		}
		cats = append(cats, cat)
	}

	sort.SliceStable(cats, func(i, j int) bool {
		a, b := cats[i], cats[j]
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "name":
				less, greater = a.Name < b.Name, a.Name > b.Name
			case "created_at":
				less, greater = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.After(b.CreatedAt)
			case "id":
				less, greater = a.ID < b.ID, a.ID > b.ID
			default:
				continue
			}
			if !ord.Ascending {
				less, greater = greater, less
			}
			if less || greater {
				return less
			}
		}
		return a.ID < b.ID
	})
	return cats, nil
}

func (repo *categoryRepository) GetCategoryByID(_ context.Context, id int, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return cat, nil
	}
	return category.Category{}, category.ErrNotFound
}

func (repo *categoryRepository) ToggleCategory(_ context.Context, id int, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cat, ok := repo.db.categories[id]
	if !ok {
		return category.Category{}, category.ErrNotFound
	}
	cat.IsActive = !cat.IsActive
	repo.db.categories[id] = cat
	return cat, nil
}
