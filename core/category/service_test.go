package category_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
	"github.com/trezcool/dossier/core/user"
	"github.com/trezcool/dossier/storage/database/inmem"
	"github.com/trezcool/dossier/testutil"
)

type fixture struct {
	svc     *category.Service
	teacher user.Profile
	student user.Profile
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	validate, translator := testutil.NewValidator()

	_, teacher := testutil.CreateTeacher(t, usrRepo, "mwalimu")
	_, student := testutil.CreateStudent(t, usrRepo, "awe", "R-001")
	return fixture{
		svc:     category.NewService(inmemdb.NewCategoryRepository(db), validate, translator),
		teacher: teacher,
		student: student,
	}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	category.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { category.NowFunc = func() time.Time { return time.Now().UTC() } })

	cat, err := f.svc.Create(ctx, f.teacher, category.NewCategory{Name: "  Transcript ", Description: "Final year"})
	require.NoError(t, err)
	assert.Equal(t, category.Category{
		ID:          cat.ID,
		Name:        "Transcript",
		Description: "Final year",
		IsActive:    true,
		CreatedBy:   f.teacher.UserID,
		CreatedAt:   now,
	}, cat)

	tests := []struct {
		name    string
		actor   user.Profile
		nc      category.NewCategory
		wantErr error
		field   string
	}{
		{name: "student", actor: f.student, nc: category.NewCategory{Name: "Other"}, wantErr: core.ErrPermissionDenied},
		{name: "duplicate", actor: f.teacher, nc: category.NewCategory{Name: "Transcript"}, wantErr: core.ErrDuplicateField, field: "name"},
		{name: "blank", actor: f.teacher, nc: category.NewCategory{Name: "   "}, wantErr: core.ErrInvalidFormat, field: "name"},
		{
			name: "too long", actor: f.teacher, wantErr: core.ErrInvalidFormat, field: "name",
			nc: category.NewCategory{Name: strings.Repeat("x", 101)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.actor, tt.nc)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			if tt.field != "" {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				require.Len(t, vErr.Fields, 1)
				assert.Equal(t, tt.field, vErr.Fields[0].Field)
			}
		})
	}
}

func TestService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	category.NowFunc = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Hour) }
	t.Cleanup(func() { category.NowFunc = func() time.Time { return time.Now().UTC() } })

	for _, name := range []string{"Transcript", "ID Card", "Birth Certificate"} {
		_, err := f.svc.Create(ctx, f.teacher, category.NewCategory{Name: name})
		require.NoError(t, err)
	}
	cats, err := f.svc.List(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "ID Card", cats[1].Name)
	_, err = f.svc.Toggle(ctx, f.teacher, cats[1].ID)
	require.NoError(t, err)

	names := func(cats []category.Category) []string {
		out := make([]string, 0, len(cats))
		for _, c := range cats {
			out = append(out, c.Name)
		}
		return out
	}

	all, err := f.svc.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Birth Certificate", "ID Card", "Transcript"}, names(all), "newest first")

	active, err := f.svc.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Birth Certificate", "Transcript"}, names(active), "active only, by name")
}

func TestService_Toggle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cat, err := f.svc.Create(ctx, f.teacher, category.NewCategory{Name: "Transcript"})
	require.NoError(t, err)

	off, err := f.svc.Toggle(ctx, f.teacher, cat.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.Equal(t, "deactivated", off.StatusVerb())

	_, err = f.svc.GetActive(ctx, cat.ID)
	assert.Equal(t, category.ErrInactive, err)

	on, err := f.svc.Toggle(ctx, f.teacher, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, cat, on, "toggling twice restores the category")
	assert.Equal(t, "activated", on.StatusVerb())

	_, err = f.svc.Toggle(ctx, f.student, cat.ID)
	assert.True(t, errors.Is(err, core.ErrPermissionDenied))

	_, err = f.svc.Toggle(ctx, f.teacher, 404)
	assert.Equal(t, category.ErrNotFound, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = f.svc.Get(ctx, 404)
	assert.Equal(t, category.ErrNotFound, err)
}
