package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/submission"
)

const submissionSelect = `
	SELECT s.id, s.student_id, s.category_id, s.document, s.filename, s.notes, s.uploaded_at, s.updated_at,
		c.name AS category_name, u.username AS student_username
	FROM submission s
	JOIN category c ON c.id = s.category_id
	JOIN "user" u ON u.id = s.student_id`

type submissionRepository struct {
	repo
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{repo{exec: exec}}
}

func (r submissionRepository) GetSubmissionFor(ctx context.Context, studentID, categoryID int, exec ...core.DBExecutor) (submission.Submission, error) {
	ex := r.getExec(exec)
	var sub submission.Submission
	q := ex.Rebind(submissionSelect + ` WHERE s.student_id = ? AND s.category_id = ?`)
	if err := ex.GetContext(ctx, &sub, q, studentID, categoryID); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "getting submission")
	}
	return sub, nil
}

func (r submissionRepository) UpsertSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	ex := r.getExec(exec)
	q := ex.Rebind(`
		INSERT INTO submission (student_id, category_id, document, filename, notes, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, category_id) DO UPDATE SET
			document = excluded.document,
			filename = excluded.filename,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		RETURNING id`)

	var id int
	err := ex.QueryRowxContext(ctx, q,
		sub.StudentID, sub.CategoryID, sub.Document, sub.Filename, sub.Notes, sub.UploadedAt.UTC(), sub.UpdatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return submission.Submission{}, errors.Wrap(err, "student or category does not exist")
		}
		return submission.Submission{}, errors.Wrap(err, "upserting submission")
	}
	return r.GetSubmissionByID(ctx, id, ex)
}

func (r submissionRepository) QuerySubmissions(ctx context.Context, studentID int, exec ...core.DBExecutor) ([]submission.Submission, error) {
	ex := r.getExec(exec)
	subs := make([]submission.Submission, 0)
	q := ex.Rebind(submissionSelect + ` WHERE s.student_id = ? ORDER BY c.name ASC, s.id ASC`)
	if err := ex.SelectContext(ctx, &subs, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (r submissionRepository) GetSubmissionByID(ctx context.Context, id int, exec ...core.DBExecutor) (submission.Submission, error) {
	ex := r.getExec(exec)
	var sub submission.Submission
	if err := ex.GetContext(ctx, &sub, ex.Rebind(submissionSelect+` WHERE s.id = ?`), id); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "getting submission")
	}
	return sub, nil
}
