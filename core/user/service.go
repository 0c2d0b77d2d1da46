package user

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/access"
)

var (
	// errors
	ErrNotFound          = core.NewError(core.ErrNotFound, "user not found")
	ErrProfileNotFound   = core.NewError(core.ErrNotFound, "profile not found")
	ErrUsernameExists    = core.NewError(core.ErrDuplicateField, "a user with that username already exists")
	ErrEmailExists       = core.NewError(core.ErrDuplicateField, "a user with this email already exists")
	ErrRollNumberExists  = core.NewError(core.ErrDuplicateField, "a student with this roll number already exists")
	ErrProfileExists     = core.NewError(core.ErrDuplicateField, "this user already has a profile")
	ErrInvalidCredential = errors.New("please enter a correct username and password")
	ErrAccountInactive   = errors.New("this account is inactive")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists, ErrEmailExists or ErrRollNumberExists for the first taken value.
		// Empty values are not checked.
		CheckUniqueness(ctx context.Context, username, email, rollNumber string, exec ...core.DBExecutor) error
		// CreateUser returns ErrUsernameExists or ErrEmailExists when the store rejects a duplicate.
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (User, error)
		// GetUserByUsernameOrEmail matches the exact username or the case-insensitive email.
		GetUserByUsernameOrEmail(ctx context.Context, login string, exec ...core.DBExecutor) (User, error)
		UpdateLastLogin(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error
		// UpdatePassword also revokes the user's sessions.
		UpdatePassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error
		// RevokeSessions bumps User.SessionVersion and returns the new version.
		RevokeSessions(ctx context.Context, id int, exec ...core.DBExecutor) (int, error)

		// CreateProfile returns ErrRollNumberExists or ErrProfileExists when the store rejects a duplicate.
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfile(ctx context.Context, userID int, exec ...core.DBExecutor) (Profile, error)
		// QueryStudents returns users with the student role. QueryFilter.Search does a case-insensitive
		// substring match on User.Username or Profile.RollNumber.
		QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (Student, error)
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, tx core.Transactor, validate *validator.Validate, translator ut.Translator) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(translator, "translator"),
	).CheckAndPanic()

	return &Service{repo: repo, tx: tx, validate: validate, translator: translator}
}

// fieldOf maps uniqueness errors to the form field they concern.
func fieldOf(err error) (string, bool) {
	switch err {
	case ErrUsernameExists:
		return "username", true
	case ErrEmailExists:
		return "email", true
	case ErrRollNumberExists:
		return "roll_number", true
	default:
		return "", false
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email, roll string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, roll); err != nil {
		if field, ok := fieldOf(err); ok {
			return core.NewFieldError(field, err)
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	return nil
}

// Register creates a student account and its profile.
func (svc *Service) Register(ctx context.Context, ns NewStudent) (User, error) {
	ns.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, ns); err != nil {
		return User{}, err
	}
	usr, _, err := svc.provision(ctx, NewUser{
		Username:        ns.Username,
		Email:           ns.Email,
		Role:            RoleStudent,
		RollNumber:      ns.RollNumber,
		Password:        ns.Password,
		PasswordConfirm: ns.PasswordConfirm,
	})
	return usr, err
}

// Create provisions an account of any role along with its profile.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, Profile, error) {
	nu.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, nu); err != nil {
		return User{}, Profile{}, err
	}
	return svc.provision(ctx, nu)
}

func (svc *Service) provision(ctx context.Context, nu NewUser) (User, Profile, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, nu.RollNumber); err != nil {
		return User{}, Profile{}, err
	}

	usr := User{
		Username:    nu.Username,
		Email:       nu.Email,
		IsSuperuser: nu.IsSuperuser,
		IsActive:    true,
		DateJoined:  NowFunc(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, Profile{}, errors.Wrap(err, "hashing password")
	}

	var prof Profile
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return err
		}
		prof, err = svc.repo.CreateProfile(ctx, nu.profile(usr.ID), exec)
		return err
	})
	if err != nil {
		// lost a race against a concurrent registration
		if field, ok := fieldOf(err); ok {
			return User{}, Profile{}, core.NewFieldError(field, err)
		}
		return User{}, Profile{}, errors.Wrap(err, "creating user")
	}
	return usr, prof, nil
}

// ResolveProfile returns usr's profile, creating it when the account has none.
// created reports whether the profile was just created.
func (svc *Service) ResolveProfile(ctx context.Context, usr User) (prof Profile, created bool, err error) {
	prof, err = svc.repo.GetProfile(ctx, usr.ID)
	if err == nil {
		return prof, false, nil
	}
	if err != ErrProfileNotFound {
		return Profile{}, false, errors.Wrap(err, "getting profile")
	}

	role := RoleStudent
	if usr.IsSuperuser {
		role = RoleTeacher
	}
	prof, err = svc.repo.CreateProfile(ctx, Profile{UserID: usr.ID, Role: role})
	if err == ErrProfileExists {
		// created by a concurrent request
		prof, err = svc.repo.GetProfile(ctx, usr.ID)
		return prof, false, errors.Wrap(err, "getting profile")
	}
	if err != nil {
		return Profile{}, false, errors.Wrap(err, "creating profile")
	}
	return prof, true, nil
}

func (svc *Service) GetProfile(ctx context.Context, userID int) (Profile, error) {
	return svc.repo.GetProfile(ctx, userID)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(login))
}

// Authenticate returns the active user whose username or email is login and whose password is pwd.
func (svc *Service) Authenticate(ctx context.Context, login, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredential
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredential
	}
	if !usr.IsActive {
		return User{}, ErrAccountInactive
	}
	if err = svc.SetLastLogin(ctx, &usr); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr *User) error {
	now := NowFunc()
	if err := svc.repo.UpdateLastLogin(ctx, usr.ID, now); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = null.TimeFrom(now)
	return nil
}

// Logout ends every session of usr.
func (svc *Service) Logout(ctx context.Context, usr *User) error {
	version, err := svc.repo.RevokeSessions(ctx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "revoking sessions")
	}
	usr.SessionVersion = version
	return nil
}

// SetPassword validates pwd against the password policy and stores its hash.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd, pwdConfirm string) error {
	nu := NewUser{
		Username:        usr.Username,
		Email:           usr.Email,
		Role:            RoleTeacher,
		Password:        pwd,
		PasswordConfirm: pwdConfirm,
	}
	if err := core.ValidateStruct(svc.validate, svc.translator, nu); err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdatePassword(ctx, usr.ID, usr.PasswordHash)
}

// QueryStudents lists the student roster, optionally filtered by search, ordered by username.
func (svc *Service) QueryStudents(ctx context.Context, actor Profile, search string) ([]Student, error) {
	if err := access.Authorize(actor.Role, access.ViewStudentSubmissions); err != nil {
		return nil, err
	}
	filter := QueryFilter{Search: search}
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter, []core.DBOrdering{{Field: "username", Ascending: true}})
}

// GetStudent returns the student with the given user id, or ErrNotFound when id is not a student.
func (svc *Service) GetStudent(ctx context.Context, actor Profile, id int) (Student, error) {
	if err := access.Authorize(actor.Role, access.ViewStudentSubmissions); err != nil {
		return Student{}, err
	}
	return svc.repo.GetStudent(ctx, id)
}
