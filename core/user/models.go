package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/access"
)

// Role is re-exported from access so callers only need this package for profiles.
type Role = access.Role

const (
	RoleStudent = access.RoleStudent
	RoleTeacher = access.RoleTeacher
)

// NowFunc returns the current time. Tests may replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

type User struct {
	ID           int       `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	IsSuperuser  bool      `db:"is_superuser"`
	IsActive     bool      `db:"is_active"`
	DateJoined   time.Time `db:"date_joined"` // UTC
	LastLogin    null.Time `db:"last_login"`  // UTC

	// SessionVersion is bumped on logout and password change. Sessions issued for an older version are void.
	SessionVersion int `db:"session_version"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Profile extends a User with its role. There is exactly one per User.
type Profile struct {
	UserID     int         `db:"user_id"`
	Role       Role        `db:"role"`
	RollNumber null.String `db:"roll_number"`
}

func (p Profile) IsStudent() bool { return p.Role == RoleStudent }
func (p Profile) IsTeacher() bool { return p.Role == RoleTeacher }

// Student is a roster entry: a user whose profile has the student role.
type Student struct {
	User
	RollNumber null.String `db:"roll_number"`
}

// NewStudent is the self-registration form.
type NewStudent struct {
	Username        string `form:"username" validate:"required,max=150,usernamechars"`
	Email           string `form:"email" validate:"required,email"`
	RollNumber      string `form:"roll_number" validate:"required,notblank,max=20"`
	Password        string `form:"password1" validate:"required"`
	PasswordConfirm string `form:"password2" validate:"required,eqfield=Password"`
}

func (ns *NewStudent) Clean() {
	ns.Username = core.CleanString(ns.Username)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.RollNumber = core.CleanString(ns.RollNumber)
}

// NewUser contains information needed to provision any account, with its role decided up front.
type NewUser struct {
	Username        string `form:"username" validate:"required,max=150,usernamechars"`
	Email           string `form:"email" validate:"required,email"`
	Role            Role   `form:"role" validate:"required,role"`
	RollNumber      string `form:"roll_number" validate:"omitempty,max=20"`
	IsSuperuser     bool   `form:"is_superuser"`
	Password        string `form:"password" validate:"required"`
	PasswordConfirm string `form:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Username = core.CleanString(nu.Username)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.RollNumber = core.CleanString(nu.RollNumber)
}

func (nu NewUser) profile(userID int) Profile {
	return Profile{
		UserID:     userID,
		Role:       nu.Role,
		RollNumber: null.NewString(nu.RollNumber, nu.RollNumber != ""),
	}
}

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
