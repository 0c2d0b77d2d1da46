package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
)

const userColumns = `id, username, email, password_hash, is_superuser, is_active, date_joined, last_login, session_version`

var studentOrderings = map[string]string{
	"username":    "u.username",
	"date_joined": "u.date_joined",
	"id":          "u.id",
}

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repo{exec: exec}}
}

// trapUniqueErr maps unique violations to the matching user error
func (r userRepository) trapUniqueErr(err error, msg string) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return errors.Wrap(err, msg)
	}
	switch {
	case strings.Contains(constraint, "username"):
		return user.ErrUsernameExists
	case strings.Contains(constraint, "email"):
		return user.ErrEmailExists
	case strings.Contains(constraint, "roll_number"):
		return user.ErrRollNumberExists
	case strings.Contains(constraint, "profile"):
		return user.ErrProfileExists
	default:
		return errors.Wrap(err, msg)
	}
}

func (r userRepository) exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var found bool
	err := exec.GetContext(ctx, &found, exec.Rebind(query), args...)
	return found, err
}

func (r userRepository) CheckUniqueness(ctx context.Context, username, email, rollNumber string, exec ...core.DBExecutor) error {
	ex := r.getExec(exec)

	checks := []struct {
		value string
		query string
		err   error
	}{
		{username, `SELECT EXISTS (SELECT 1 FROM "user" WHERE username = ?)`, user.ErrUsernameExists},
		{email, `SELECT EXISTS (SELECT 1 FROM "user" WHERE LOWER(email) = LOWER(?))`, user.ErrEmailExists},
		{rollNumber, `SELECT EXISTS (SELECT 1 FROM profile WHERE roll_number = ?)`, user.ErrRollNumberExists},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		found, err := r.exists(ctx, ex, check.query, check.value)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if found {
			return check.err
		}
	}
	return nil
}

func (r userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := r.getExec(exec)
	q := ex.Rebind(`
		INSERT INTO "user" (username, email, password_hash, is_superuser, is_active, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	usr.DateJoined = usr.DateJoined.UTC()
	err := ex.QueryRowxContext(ctx, q,
		usr.Username, usr.Email, usr.PasswordHash, usr.IsSuperuser, usr.IsActive, usr.DateJoined, usr.LastLogin,
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, r.trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (r userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	ex := r.getExec(exec)
	var usr user.User
	err := ex.GetContext(ctx, &usr, ex.Rebind(`SELECT `+userColumns+` FROM "user" WHERE id = ?`), id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return usr, nil
}

func (r userRepository) GetUserByUsernameOrEmail(ctx context.Context, login string, exec ...core.DBExecutor) (user.User, error) {
	ex := r.getExec(exec)
	q := ex.Rebind(`
		SELECT ` + userColumns + ` FROM "user"
		WHERE username = ? OR LOWER(email) = LOWER(?)
		ORDER BY CASE WHEN username = ? THEN 0 ELSE 1 END
		LIMIT 1`)

	var usr user.User
	if err := ex.GetContext(ctx, &usr, q, login, login, login); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return usr, nil
}

func (r userRepository) update(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) error {
	ex := r.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r userRepository) UpdateLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	return r.update(ctx, exec, `UPDATE "user" SET last_login = ? WHERE id = ?`, at.UTC(), id)
}

func (r userRepository) UpdatePassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error {
	return r.update(ctx, exec,
		`UPDATE "user" SET password_hash = ?, session_version = session_version + 1 WHERE id = ?`, hash, id)
}

func (r userRepository) RevokeSessions(ctx context.Context, id int, exec ...core.DBExecutor) (int, error) {
	ex := r.getExec(exec)
	q := ex.Rebind(`UPDATE "user" SET session_version = session_version + 1 WHERE id = ? RETURNING session_version`)

	var version int
	if err := ex.GetContext(ctx, &version, q, id); err != nil {
		return 0, trapNoRowsErr(err, user.ErrNotFound, "revoking sessions")
	}
	return version, nil
}

func (r userRepository) CreateProfile(ctx context.Context, prof user.Profile, exec ...core.DBExecutor) (user.Profile, error) {
	ex := r.getExec(exec)
	q := ex.Rebind(`INSERT INTO profile (user_id, role, roll_number) VALUES (?, ?, ?)`)
	if _, err := ex.ExecContext(ctx, q, prof.UserID, string(prof.Role), prof.RollNumber); err != nil {
		if isForeignKeyViolation(err) {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, r.trapUniqueErr(err, "inserting profile")
	}
	return prof, nil
}

func (r userRepository) GetProfile(ctx context.Context, userID int, exec ...core.DBExecutor) (user.Profile, error) {
	ex := r.getExec(exec)
	var prof user.Profile
	q := ex.Rebind(`SELECT user_id, role, roll_number FROM profile WHERE user_id = ?`)
	if err := ex.GetContext(ctx, &prof, q, userID); err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrProfileNotFound, "getting profile")
	}
	return prof, nil
}

const studentSelect = `
	SELECT u.id, u.username, u.email, u.password_hash, u.is_superuser, u.is_active, u.date_joined, u.last_login,
		u.session_version, p.roll_number
	FROM "user" u
	JOIN profile p ON p.user_id = u.id
	WHERE p.role = ?`

func (r userRepository) QueryStudents(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.Student, error) {
	ex := r.getExec(exec)

	q := studentSelect
	args := []interface{}{string(user.RoleStudent)}
	if filter.Search != "" {
		// users with Username or RollNumber matching the search keyword
		q += ` AND (LOWER(u.username) LIKE ? ESCAPE '\' OR LOWER(COALESCE(p.roll_number, '')) LIKE ? ESCAPE '\')`
		pattern := containsPattern(filter.Search)
		args = append(args, pattern, pattern)
	}
	q += orderBy(ordering, studentOrderings)

	students := make([]user.Student, 0)
	if err := ex.SelectContext(ctx, &students, ex.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (r userRepository) GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (user.Student, error) {
	ex := r.getExec(exec)
	var student user.Student
	q := ex.Rebind(studentSelect + ` AND u.id = ?`)
	if err := ex.GetContext(ctx, &student, q, string(user.RoleStudent), id); err != nil {
		return user.Student{}, trapNoRowsErr(err, user.ErrNotFound, "getting student")
	}
	return student, nil
}
