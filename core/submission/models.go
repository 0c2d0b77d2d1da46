package submission

import (
	"io"
	"strings"
	"time"
)

// NowFunc returns the current time. Tests may replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

// DocumentsPrefix is the flat blob namespace holding every uploaded document.
const DocumentsPrefix = "documents/"

// Submission is the single document a student stored for a category.
type Submission struct {
	ID         int       `db:"id"`
	StudentID  int       `db:"student_id"`
	CategoryID int       `db:"category_id"`
	Document   string    `db:"document"` // blob key
	Filename   string    `db:"filename"` // as sent by the client
	Notes      string    `db:"notes"`
	UploadedAt time.Time `db:"uploaded_at"` // UTC, set once
	UpdatedAt  time.Time `db:"updated_at"`  // UTC

	// read only, joined from category and "user"
	CategoryName    string `db:"category_name"`
	StudentUsername string `db:"student_username"`
}

// NewUpload is a document sent by a student.
type NewUpload struct {
	CategoryID int
	Filename   string
	Size       int64
	Content    io.Reader
	Notes      string
}

var nameReplacer = strings.NewReplacer(`"`, "", "\r", "", "\n", "", "\\", "")

// DownloadName is the attachment filename offered for sub: "<category>_<username>.pdf".
func DownloadName(sub Submission) string {
	return nameReplacer.Replace(sub.CategoryName + "_" + sub.StudentUsername + ".pdf")
}
