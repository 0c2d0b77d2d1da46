// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
	"github.com/trezcool/dossier/storage/database"
)

// Password satisfies the password policy for every user created by CreateUser.
const Password = "correct-horse-battery"

// OpenDB returns a migrated sqlite database living in memory, closed when the test ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

// NewValidator returns a validator with every custom validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// CreateUser stores a user and, when role is set, its profile.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email string,
	role user.Role,
	rollNumber string,
	isSuperuser bool,
	dateJoined ...time.Time,
) (user.User, user.Profile) {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(dateJoined) > 0 {
		tstamp = dateJoined[0].UTC()
	}
	usr := user.User{
		Username:    uname,
		Email:       email,
		IsSuperuser: isSuperuser,
		IsActive:    true,
		DateJoined:  tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	ctx := context.Background()
	usr, err := repo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if role == "" {
		return usr, user.Profile{}
	}
	prof, err := repo.CreateProfile(ctx, user.Profile{
		UserID:     usr.ID,
		Role:       role,
		RollNumber: null.NewString(rollNumber, rollNumber != ""),
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr, prof
}

// CreateStudent stores a student with its profile.
func CreateStudent(t *testing.T, repo user.Repository, uname, rollNumber string) (user.User, user.Profile) {
	t.Helper()
	return CreateUser(t, repo, uname, uname+"@test.cd", user.RoleStudent, rollNumber, false)
}

// CreateTeacher stores a teacher with its profile.
func CreateTeacher(t *testing.T, repo user.Repository, uname string) (user.User, user.Profile) {
	t.Helper()
	return CreateUser(t, repo, uname, uname+"@test.cd", user.RoleTeacher, "", false)
}
