package echoweb_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	echoweb "github.com/trezcool/dossier/apps/web/echo"
	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
	"github.com/trezcool/dossier/core/submission"
	"github.com/trezcool/dossier/core/user"
	"github.com/trezcool/dossier/storage/blob"
	"github.com/trezcool/dossier/storage/database/inmem"
	"github.com/trezcool/dossier/testutil"
)

type app struct {
	server  *echoweb.Server
	usrRepo user.Repository
	catSvc  *category.Service
	subSvc  *submission.Service
	blobs   *blob.MemoryStore
}

func setup(t *testing.T, confs ...func(*core.Config)) app {
	t.Helper()

	conf := core.NewTestConfig()
	for _, fn := range confs {
		fn(conf)
	}

	db := inmemdb.NewDB()
	validate, translator := testutil.NewValidator()
	logger, _ := testutil.NewLogger()

	a := app{
		usrRepo: inmemdb.NewUserRepository(db),
		blobs:   blob.NewMemoryStore(),
	}
	usrSvc := user.NewService(a.usrRepo, db, validate, translator)
	a.catSvc = category.NewService(inmemdb.NewCategoryRepository(db), validate, translator)
	a.subSvc = submission.NewService(inmemdb.NewSubmissionRepository(db), db, a.catSvc, a.blobs, logger)

	var err error
	a.server, err = echoweb.NewServer(&echoweb.Deps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CategorySvc:   a.catSvc,
		SubmissionSvc: a.subSvc,
	})
	require.NoError(t, err)
	return a
}

func (a app) createCategory(t *testing.T, teacher user.Profile, name string) category.Category {
	t.Helper()
	cat, err := a.catSvc.Create(context.Background(), teacher, category.NewCategory{Name: name})
	require.NoError(t, err)
	return cat
}

func (a app) upload(t *testing.T, student user.Profile, catID int, content string) submission.Submission {
	t.Helper()
	sub, _, err := a.subSvc.Upload(context.Background(), student, submission.NewUpload{
		CategoryID: catID,
		Filename:   "doc.pdf",
		Size:       int64(len(content)),
		Content:    strings.NewReader(content),
	})
	require.NoError(t, err)
	return sub
}

// client is a browser: it keeps the cookies set by the server.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (a app) newClient(t *testing.T) *client {
	return &client{t: t, handler: a.server, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postFile(path string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("document", filename)
		require.NoError(c.t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(c.t, err)
	}
	require.NoError(c.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

// follow GETs the redirect target of rec.
func (c *client) follow(rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	c.t.Helper()
	require.Contains(c.t, []int{http.StatusFound, http.StatusMovedPermanently}, rec.Code, rec.Body.String())
	return c.get(rec.Header().Get("Location"))
}

func (c *client) login(username string) {
	c.t.Helper()
	rec := c.postForm("/login/", url.Values{"username": {username}, "password": {testutil.Password}})
	require.Equal(c.t, http.StatusFound, rec.Code, rec.Body.String())
}

func itoa(i int) string { return strconv.Itoa(i) }
