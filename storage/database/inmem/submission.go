package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

// join fills the read only fields; the read lock must be held.
func (repo *submissionRepository) join(sub submission.Submission) submission.Submission {
	sub.CategoryName = repo.db.categories[sub.CategoryID].Name
	sub.StudentUsername = repo.db.users[sub.StudentID].Username
	return sub
}

func (repo *submissionRepository) find(studentID, categoryID int) (submission.Submission, bool) {
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID && sub.CategoryID == categoryID {
			return sub, true
		}
	}
	return submission.Submission{}, false
}

func (repo *submissionRepository) GetSubmissionFor(_ context.Context, studentID, categoryID int, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.find(studentID, categoryID); ok {
		return repo.join(sub), nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) UpsertSubmission(_ context.Context, sub submission.Submission, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if existing, ok := repo.find(sub.StudentID, sub.CategoryID); ok {
		existing.Document = sub.Document
		existing.Filename = sub.Filename
		existing.Notes = sub.Notes
		existing.UpdatedAt = sub.UpdatedAt
		repo.db.submissions[existing.ID] = existing
		return repo.join(existing), nil
	}

	sub.ID = repo.db.nextID("submission")
	sub.CategoryName, sub.StudentUsername = "", ""
	repo.db.submissions[sub.ID] = sub
	return repo.join(sub), nil
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, studentID int, _ ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID {
			subs = append(subs, repo.join(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CategoryName != subs[j].CategoryName {
			return subs[i].CategoryName < subs[j].CategoryName
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (repo *submissionRepository) GetSubmissionByID(_ context.Context, id int, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return repo.join(sub), nil
	}
	return submission.Submission{}, submission.ErrNotFound
}
