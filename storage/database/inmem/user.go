package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) checkUniqueness(username, email, rollNumber string) error {
	for _, usr := range repo.db.users {
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	if rollNumber != "" {
		for _, prof := range repo.db.profiles {
			if prof.RollNumber.Valid && prof.RollNumber.String == rollNumber {
				return user.ErrRollNumberExists
			}
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email, rollNumber string, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(username, email, rollNumber)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, ""); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.nextID("user")
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, login string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Username == login || strings.EqualFold(usr.Email, login) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateLastLogin(_ context.Context, id int, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = null.TimeFrom(at.UTC())
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) UpdatePassword(_ context.Context, id int, hash []byte, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.PasswordHash = hash
	usr.SessionVersion++
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) RevokeSessions(_ context.Context, id int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return 0, user.ErrNotFound
	}
	usr.SessionVersion++
	repo.db.users[id] = usr
	return usr.SessionVersion, nil
}

func (repo *userRepository) CreateProfile(_ context.Context, prof user.Profile, _ ...core.DBExecutor) (user.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[prof.UserID]; !ok {
		return user.Profile{}, user.ErrNotFound
	}
	if _, ok := repo.db.profiles[prof.UserID]; ok {
		return user.Profile{}, user.ErrProfileExists
	}
	if prof.RollNumber.Valid {
		if err := repo.checkUniqueness("", "", prof.RollNumber.String); err != nil {
			return user.Profile{}, err
		}
	}
	repo.db.profiles[prof.UserID] = prof
	return prof, nil
}

func (repo *userRepository) GetProfile(_ context.Context, userID int, _ ...core.DBExecutor) (user.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prof, ok := repo.db.profiles[userID]; ok {
		return prof, nil
	}
	return user.Profile{}, user.ErrProfileNotFound
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (repo *userRepository) QueryStudents(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]user.Student, 0)
	for _, prof := range repo.db.profiles {
		if prof.Role != user.RoleStudent {
			continue
		}
		usr := repo.db.users[prof.UserID]
		if filter.Search != "" &&
			!containsFold(usr.Username, filter.Search) &&
			!(prof.RollNumber.Valid && containsFold(prof.RollNumber.String, filter.Search)) {
			continue
		}
		students = append(students, user.Student{User: usr, RollNumber: prof.RollNumber})
	}

	sortStudents(students, ordering)
	return students, nil
}

// sortStudents supports ordering by username and date_joined; ties are broken by id.
func sortStudents(students []user.Student, ordering []core.DBOrdering) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "username":
				less, greater = a.Username < b.Username, a.Username > b.Username
			case "date_joined":
				less, greater = a.DateJoined.Before(b.DateJoined), a.DateJoined.After(b.DateJoined)
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
}

func (repo *userRepository) GetStudent(_ context.Context, id int, _ ...core.DBExecutor) (user.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	prof, ok := repo.db.profiles[id]
	if !ok || prof.Role != user.RoleStudent {
		return user.Student{}, user.ErrNotFound
	}
	return user.Student{User: repo.db.users[id], RollNumber: prof.RollNumber}, nil
}
