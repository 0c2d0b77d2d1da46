package echoweb_test

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
	"github.com/trezcool/dossier/testutil"
)

type httpTest struct {
	name     string
	method   string
	path     string
	form     url.Values
	login    string // username of the logged in user
	wantCode int
	wantLoc  string // redirect target
	wantBody []string
}

func runHTTPTests(t *testing.T, a app, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := a.newClient(t)
			if tt.login != "" {
				c.login(tt.login)
			}

			var rec *httptest.ResponseRecorder
			if tt.method == http.MethodPost {
				rec = c.postForm(tt.path, tt.form)
			} else {
				rec = c.get(tt.path)
			}

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	a := setup(t)
	runHTTPTests(t, a, []httpTest{
		{name: "dashboard", path: "/", wantCode: http.StatusFound, wantLoc: "/login/?next=%2F"},
		{name: "upload", path: "/upload/", wantCode: http.StatusFound, wantLoc: "/login/?next=%2Fupload%2F"},
		{name: "categories", path: "/categories/", wantCode: http.StatusFound, wantLoc: "/login/?next=%2Fcategories%2F"},
		{name: "student", path: "/student/1/", wantCode: http.StatusFound, wantLoc: "/login/?next=%2Fstudent%2F1%2F"},
		{name: "download", path: "/download/1/", wantCode: http.StatusFound, wantLoc: "/login/?next=%2Fdownload%2F1%2F"},
		{name: "adds trailing slash", path: "/upload", wantCode: http.StatusMovedPermanently, wantLoc: "/upload/"},
		{name: "login page", path: "/login/?next=/upload/", wantCode: http.StatusOK, wantBody: []string{`name="next" value="/upload/"`}},
		{name: "register page", path: "/register/", wantCode: http.StatusOK, wantBody: []string{"Student registration"}},
	})
}

func TestLogin(t *testing.T) {
	a := setup(t)
	testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")

	form := func(uname, pwd, next string) url.Values {
		return url.Values{"username": {uname}, "password": {pwd}, "next": {next}}
	}
	runHTTPTests(t, a, []httpTest{
		{
			name: "wrong password", method: http.MethodPost, path: "/login/", form: form("awe", "nope", ""),
			wantCode: http.StatusOK, wantBody: []string{user.ErrInvalidCredential.Error()},
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/login/", form: form("nobody", testutil.Password, ""),
			wantCode: http.StatusOK, wantBody: []string{user.ErrInvalidCredential.Error()},
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/login/", form: form("", "", ""),
			wantCode: http.StatusOK, wantBody: []string{"this field is required"},
		},
		{name: "by username", method: http.MethodPost, path: "/login/", form: form("awe", testutil.Password, ""), wantCode: http.StatusFound, wantLoc: "/"},
		{name: "by email", method: http.MethodPost, path: "/login/", form: form("AWE@test.cd", testutil.Password, ""), wantCode: http.StatusFound, wantLoc: "/"},
		{
			name: "next", method: http.MethodPost, path: "/login/", form: form("awe", testutil.Password, "/upload/?category=1"),
			wantCode: http.StatusFound, wantLoc: "/upload/?category=1",
		},
		{
			name: "unsafe next", method: http.MethodPost, path: "/login/", form: form("awe", testutil.Password, "//evil.example/"),
			wantCode: http.StatusFound, wantLoc: "/",
		},
		{
			name: "absolute next", method: http.MethodPost, path: "/login/", form: form("awe", testutil.Password, "https://evil.example/"),
			wantCode: http.StatusFound, wantLoc: "/",
		},
	})
}

func TestLogout(t *testing.T) {
	a := setup(t)
	testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")

	c := a.newClient(t)
	c.login("awe")
	require.Equal(t, http.StatusOK, c.get("/").Code)

	copied := a.newClient(t)
	copied.cookies["sessionid"] = c.cookies["sessionid"]
	require.Equal(t, http.StatusOK, copied.get("/").Code)

	rec := c.get("/logout/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/", rec.Header().Get("Location"))
	assert.Contains(t, c.follow(rec).Body.String(), "You have been logged out successfully.")

	assert.Equal(t, http.StatusFound, c.get("/").Code, "session is gone")
	rec = copied.get("/")
	assert.Equal(t, http.StatusFound, rec.Code, "a copy of the cookie is revoked too")
	assert.Equal(t, "/login/?next=%2F", rec.Header().Get("Location"))

	c.login("awe")
	assert.Equal(t, http.StatusOK, c.get("/").Code, "a new login gets a fresh session")

	anon := a.newClient(t)
	assert.Equal(t, http.StatusFound, anon.get("/logout/").Code)
}

func TestRegister(t *testing.T) {
	a := setup(t)
	c := a.newClient(t)

	valid := url.Values{
		"username":    {"awe"},
		"email":       {"awe@test.cd"},
		"roll_number": {"R-001"},
		"password1":   {testutil.Password},
		"password2":   {testutil.Password},
	}

	bad := url.Values{}
	for k, v := range valid {
		bad[k] = v
	}
	bad.Set("password2", "something-else")
	rec := c.postForm("/register/", bad)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please correct the errors below.")
	assert.Contains(t, rec.Body.String(), html.EscapeString("the two password fields didn't match"))
	assert.Contains(t, rec.Body.String(), `value="awe"`, "submitted values are kept")

	rec = c.postForm("/register/", valid)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))
	body := c.follow(rec).Body.String()
	assert.Contains(t, body, "Registration successful! Welcome to the system.")
	assert.Contains(t, body, "My documents")

	rec = a.newClient(t).postForm("/register/", valid)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a user with that username already exists")
}

func TestDashboard(t *testing.T) {
	a := setup(t)
	_, awe := testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	testutil.CreateStudent(t, a.usrRepo, "bob", "X-200")
	_, teacher := testutil.CreateTeacher(t, a.usrRepo, "mwalimu")
	testutil.CreateUser(t, a.usrRepo, "boss", "boss@test.cd", "", "", true)
	testutil.CreateUser(t, a.usrRepo, "newbie", "newbie@test.cd", "", "", false)

	transcript := a.createCategory(t, teacher, "Transcript")
	a.createCategory(t, teacher, "ID Card")
	closed := a.createCategory(t, teacher, "Closed Form")
	_, err := a.catSvc.Toggle(context.Background(), teacher, closed.ID)
	require.NoError(t, err)
	a.upload(t, awe, transcript.ID, "%PDF")

	runHTTPTests(t, a, []httpTest{
		{
			name: "student", path: "/", login: "awe", wantCode: http.StatusOK,
			wantBody: []string{"My documents", "Transcript", "ID Card", "doc.pdf"},
		},
		{name: "teacher", path: "/", login: "mwalimu", wantCode: http.StatusOK, wantBody: []string{"awe", "bob", "R-001", "X-200"}},
		{name: "teacher search", path: "/?search=x-2", login: "mwalimu", wantCode: http.StatusOK, wantBody: []string{"bob"}},
		{
			name: "superuser without profile", path: "/", login: "boss", wantCode: http.StatusOK,
			wantBody: []string{"Profile created for your account.", "Username or roll number"},
		},
		{
			name: "user without profile", path: "/", login: "newbie", wantCode: http.StatusOK,
			wantBody: []string{"Profile created for your account.", "My documents"},
		},
	})

	c := a.newClient(t)
	c.login("awe")
	body := c.get("/").Body.String()
	assert.NotContains(t, body, "Closed Form")

	c = a.newClient(t)
	c.login("mwalimu")
	body = c.get("/?search=x-2").Body.String()
	assert.NotContains(t, body, "R-001")
}

func TestUpload(t *testing.T) {
	a := setup(t)
	_, awe := testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	_, teacher := testutil.CreateTeacher(t, a.usrRepo, "mwalimu")
	cat := a.createCategory(t, teacher, "Transcript")
	fields := map[string]string{"category": itoa(cat.ID), "notes": "first try"}

	c := a.newClient(t)
	c.login("awe")
	assert.Equal(t, http.StatusOK, c.get("/upload/").Code)

	rec := c.postFile("/upload/", fields, "report.docx", "PK")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please correct the errors below.")
	assert.Contains(t, rec.Body.String(), "only PDF files are allowed")
	assert.Empty(t, a.blobs.Keys())

	rec = c.postFile("/upload/", fields, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file was submitted")

	rec = c.postFile("/upload/", map[string]string{"category": "999"}, "a.pdf", "%PDF")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "select a valid choice")

	rec = c.postFile("/upload/", fields, "report.PDF", "%PDF-1.4 first")
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Contains(t, c.follow(rec).Body.String(), "Document uploaded successfully!")

	fields["notes"] = "second try"
	rec = c.postFile("/upload/", fields, "report.pdf", "%PDF-1.4 second")
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Contains(t, c.follow(rec).Body.String(), "Document updated successfully!")

	subs, err := a.subSvc.ListFor(context.Background(), awe, awe.UserID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "second try", subs[0].Notes)
	assert.Len(t, a.blobs.Keys(), 1)

	tc := a.newClient(t)
	tc.login("mwalimu")
	assert.Equal(t, http.StatusForbidden, tc.get("/upload/").Code)
	assert.Equal(t, http.StatusForbidden, tc.postFile("/upload/", fields, "a.pdf", "%PDF").Code)
}

func TestUpload_bodyLimit(t *testing.T) {
	a := setup(t, func(conf *core.Config) { conf.Server.MaxUploadSize = 512 })
	_, teacher := testutil.CreateTeacher(t, a.usrRepo, "mwalimu")
	testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	cat := a.createCategory(t, teacher, "Transcript")

	c := a.newClient(t)
	c.login("awe")
	big := make([]byte, 4096)
	rec := c.postFile("/upload/", map[string]string{"category": itoa(cat.ID)}, "big.pdf", string(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, a.blobs.Keys())
}

func TestDownload(t *testing.T) {
	a := setup(t)
	_, awe := testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	testutil.CreateStudent(t, a.usrRepo, "bob", "R-002")
	_, teacher := testutil.CreateTeacher(t, a.usrRepo, "mwalimu")
	cat := a.createCategory(t, teacher, "Transcript")
	sub := a.upload(t, awe, cat.ID, "%PDF-1.4 body")
	path := "/download/" + itoa(sub.ID) + "/"

	for _, uname := range []string{"awe", "mwalimu"} {
		c := a.newClient(t)
		c.login(uname)
		rec := c.get(path)
		require.Equal(t, http.StatusOK, rec.Code, uname)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Transcript_awe.pdf"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.4 body", rec.Body.String())
	}

	runHTTPTests(t, a, []httpTest{
		{name: "other student", path: path, login: "bob", wantCode: http.StatusForbidden, wantBody: []string{"You do not have permission to access this page."}},
		{name: "unknown document", path: "/download/999/", login: "mwalimu", wantCode: http.StatusNotFound},
		{name: "bad id", path: "/download/abc/", login: "mwalimu", wantCode: http.StatusNotFound},
	})

	require.NoError(t, a.blobs.Delete(context.Background(), sub.Document))
	c := a.newClient(t)
	c.login("mwalimu")
	assert.Equal(t, http.StatusNotFound, c.get(path).Code, "missing file")
}

func TestStudentDocuments(t *testing.T) {
	a := setup(t)
	_, awe := testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	_, teacher := testutil.CreateTeacher(t, a.usrRepo, "mwalimu")
	cat := a.createCategory(t, teacher, "Transcript")
	a.upload(t, awe, cat.ID, "%PDF")

	runHTTPTests(t, a, []httpTest{
		{
			name: "teacher", path: "/student/" + itoa(awe.UserID) + "/", login: "mwalimu",
			wantCode: http.StatusOK, wantBody: []string{"Documents of awe", "Transcript", "doc.pdf"},
		},
		{name: "student", path: "/student/" + itoa(awe.UserID) + "/", login: "awe", wantCode: http.StatusForbidden},
		{name: "not a student", path: "/student/" + itoa(teacher.UserID) + "/", login: "mwalimu", wantCode: http.StatusNotFound},
		{name: "unknown", path: "/student/999/", login: "mwalimu", wantCode: http.StatusNotFound},
	})
}

func TestCategories(t *testing.T) {
	a := setup(t)
	testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	_, teacher := testutil.CreateTeacher(t, a.usrRepo, "mwalimu")
	existing := a.createCategory(t, teacher, "Transcript")

	sc := a.newClient(t)
	sc.login("awe")
	rec := sc.get("/categories/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have permission to access this page.")
	assert.Equal(t, http.StatusForbidden, sc.postForm("/categories/", url.Values{"name": {"Sneaky"}}).Code)
	assert.Equal(t, http.StatusForbidden, sc.postForm("/categories/toggle/"+itoa(existing.ID)+"/", nil).Code)

	c := a.newClient(t)
	c.login("mwalimu")
	assert.Contains(t, c.get("/categories/").Body.String(), "Transcript")

	rec = c.postForm("/categories/", url.Values{"name": {"ID Card"}, "description": {"Front and back"}})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/categories/", rec.Header().Get("Location"))
	body := c.follow(rec).Body.String()
	assert.Contains(t, body, "Category added successfully!")
	assert.Contains(t, body, "Front and back")

	rec = c.postForm("/categories/", url.Values{"name": {"Transcript"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a category with this name already exists")
	assert.Contains(t, rec.Body.String(), "Please correct the errors below.")

	rec = c.postForm("/categories/", url.Values{"name": {"   "}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please correct the errors below.")

	rec = c.postForm("/categories/toggle/"+itoa(existing.ID)+"/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, c.follow(rec).Body.String(), html.EscapeString(`Category "Transcript" deactivated successfully!`))

	rec = c.get("/categories/toggle/" + itoa(existing.ID) + "/")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, c.follow(rec).Body.String(), html.EscapeString(`Category "Transcript" activated successfully!`))

	assert.Equal(t, http.StatusNotFound, c.postForm("/categories/toggle/999/", nil).Code)

	cats, err := a.catSvc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestHealthAndAssets(t *testing.T) {
	a := setup(t)
	c := a.newClient(t)

	rec := c.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status["status"])

	rec = c.get("/static/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".flash")
}

var csrfInput = regexp.MustCompile(`name="csrf" value="([^"]+)"`)

func TestCSRF(t *testing.T) {
	a := setup(t, func(conf *core.Config) { conf.Server.DisableCSRF = false })
	testutil.CreateStudent(t, a.usrRepo, "awe", "R-001")
	c := a.newClient(t)

	rec := c.get("/login/")
	require.Equal(t, http.StatusOK, rec.Code)
	m := csrfInput.FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2, "the form carries a token")

	form := url.Values{"username": {"awe"}, "password": {testutil.Password}}
	assert.Equal(t, http.StatusBadRequest, c.postForm("/login/", form).Code, "missing token")

	form.Set("csrf", "forged")
	assert.Equal(t, http.StatusForbidden, c.postForm("/login/", form).Code, "invalid token")

	form.Set("csrf", m[1])
	assert.Equal(t, http.StatusFound, c.postForm("/login/", form).Code)
}
