package category

import (
	"time"

	"github.com/trezcool/dossier/core"
)

// NowFunc returns the current time. Tests may replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

// Category is a kind of document students may submit.
type Category struct {
	ID          int       `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsActive    bool      `db:"is_active"`
	CreatedBy   int       `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"` // UTC
}

// StatusVerb is "activated" or "deactivated" depending on IsActive.
func (c Category) StatusVerb() string {
	if c.IsActive {
		return "activated"
	}
	return "deactivated"
}

type NewCategory struct {
	Name        string `form:"name" validate:"required,notblank,max=100"`
	Description string `form:"description"`
}

func (nc *NewCategory) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
}
