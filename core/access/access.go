// Package access decides which role may perform which action.
// Checks are evaluated on every call from the role stored in the caller's profile.
package access

import (
	"fmt"
	"strings"

	"github.com/trezcool/dossier/core"
)

// Role is the closed set of roles a profile may carry.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Roles lists every valid role.
var Roles = []Role{RoleStudent, RoleTeacher}

var ErrUnknownRole = core.NewError(core.ErrInvalidFormat, "unknown role")

// ParseRole returns the Role named by s (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher:
		return true
	default:
		return false
	}
}

// Label is the human readable name of the role.
func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleTeacher:
		return "Teacher"
	default:
		return ""
	}
}

func (r Role) String() string { return string(r) }

// Action is something a role may be allowed to do.
type Action int

const (
	ViewOwnSubmissions Action = iota + 1
	UploadSubmission
	ViewStudentSubmissions
	ManageCategories
	ToggleCategory
	DownloadSubmission
)

var actionNames = map[Action]string{
	ViewOwnSubmissions:     "view own submissions",
	UploadSubmission:       "upload submission",
	ViewStudentSubmissions: "view student submissions",
	ManageCategories:       "manage categories",
	ToggleCategory:         "toggle category",
	DownloadSubmission:     "download submission",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Can reports whether role may perform action.
func Can(role Role, action Action) bool {
	switch role {
	case RoleStudent:
		switch action {
		case ViewOwnSubmissions, UploadSubmission, DownloadSubmission:
			return true
		default:
			return false
		}
	case RoleTeacher:
		switch action {
		case ViewStudentSubmissions, ManageCategories, ToggleCategory, DownloadSubmission:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// Authorize returns a core.ErrPermissionDenied error when role may not perform action.
func Authorize(role Role, action Action) error {
	if !Can(role, action) {
		return denied(role, action)
	}
	return nil
}

// AuthorizeDownload allows the student who owns a submission and any teacher.
func AuthorizeDownload(role Role, actorID, ownerID int) error {
	if err := Authorize(role, DownloadSubmission); err != nil {
		return err
	}
	switch role {
	case RoleTeacher:
		return nil
	case RoleStudent:
		if actorID == ownerID {
			return nil
		}
		return core.NewError(core.ErrPermissionDenied, "students may only download their own documents")
	default:
		return denied(role, DownloadSubmission)
	}
}

func denied(role Role, action Action) error {
	who := role.Label()
	if who == "" {
		who = "unknown role"
	}
	return core.NewError(core.ErrPermissionDenied, strings.ToLower(who)+" may not "+action.String())
}
