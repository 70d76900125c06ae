package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/princinho/jobportal/config"
	"github.com/princinho/jobportal/mailer"
	"github.com/princinho/jobportal/middleware"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
	"github.com/princinho/jobportal/services"
	"github.com/princinho/jobportal/utils"
)

const (
	adminEmail    = "admin@portal.test"
	adminPassword = "admin-password"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = bcrypt.MinCost
}

type sinkMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *sinkMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type announcements struct {
	mu   sync.Mutex
	seen []models.Listing
}

func (a *announcements) NotifyNewListing(_ context.Context, l models.Listing) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, l)
}

func (a *announcements) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

type testServer struct {
	router *gin.Engine
	auth   *services.AuthService
	users  *repository.MemoryUserStore
	mail   *sinkMailer
	news   *announcements
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		AppURL:         "http://portal.test",
		JWTSecret:      "controller-test-secret-of-32-or-more-chars",
		SessionTTLDays: 30,
	}
	users := repository.NewMemoryUserStore()
	jobs := repository.NewMemoryListingStore[models.Job]("job")
	courses := repository.NewMemoryListingStore[models.Course]("course")
	mail := &sinkMailer{}
	news := &announcements{}

	auth := services.NewAuthService(users, mail, cfg)
	require.NoError(t, auth.SeedAdmin(context.Background(), adminEmail, adminPassword))
	t.Cleanup(auth.Wait)

	r := gin.New()
	r.Use(middleware.RequestID())
	require.NoError(t, RegisterRoutes(r, Deps{
		Auth:      auth,
		Jobs:      services.NewListingService[models.Job](jobs, news, nil, 1<<20),
		Courses:   services.NewListingService[models.Course](courses, news, nil, 1<<20),
		Dashboard: services.NewDashboardService(users, jobs, courses),
		Cookies:   CookieConfig{TTL: cfg.SessionTTL()},
		MaxUpload: 1 << 20,
	}))

	return &testServer{router: r, auth: auth, users: users, mail: mail, news: news}
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(http.MethodPost, "/auth/login", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) register(t *testing.T, name, email, password string) {
	t.Helper()
	w := s.do(http.MethodPost, "/auth/register", fmt.Sprintf(`{"name":%q,"email":%q,"password":%q}`, name, email, password), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		status  int
		errText string
	}{
		{"created", `{"name":"Alice","email":"alice@example.com","password":"secret1"}`, http.StatusCreated, ""},
		{"duplicate with other case", `{"name":"Alice","email":"ALICE@example.com","password":"secret1"}`, http.StatusConflict, "user with this email already exists"},
		{"missing name", `{"email":"bob@example.com","password":"secret1"}`, http.StatusBadRequest, "name is required"},
		{"short password", `{"name":"Bob","email":"bob@example.com","password":"123"}`, http.StatusBadRequest, ""},
		{"malformed json", `{"name":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/auth/register", tt.body, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.errText != "" {
				assert.Equal(t, tt.errText, decodeBody(t, w)["error"])
			}
		})
	}

	w := s.do(http.MethodPost, "/auth/register", `{"name":"Carol","email":"carol@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	user := decodeBody(t, w)["user"].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestLogin_JSON(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@example.com", "secret1")

	w := s.do(http.MethodPost, "/auth/login", `{"email":"Alice@Example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "alice@example.com", body["user"].(map[string]any)["email"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 30*24*3600, cookies[0].MaxAge)

	for _, body := range []string{
		`{"email":"alice@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"secret1"}`,
	} {
		w := s.do(http.MethodPost, "/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid credentials", decodeBody(t, w)["error"])
	}
}

func TestLogin_Form(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@example.com", "secret1")

	t.Run("success redirects to callback", func(t *testing.T) {
		w := s.postForm("/auth/login", url.Values{
			"email":       {"alice@example.com"},
			"password":    {"secret1"},
			"callbackUrl": {"/admin/dashboard"},
		})
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/admin/dashboard", w.Header().Get("Location"))
		assert.NotEmpty(t, w.Result().Cookies())
	})

	t.Run("foreign callback falls back to root", func(t *testing.T) {
		w := s.postForm("/auth/login", url.Values{
			"email":       {"alice@example.com"},
			"password":    {"secret1"},
			"callbackUrl": {"//evil.example.com"},
		})
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("failure returns to login page", func(t *testing.T) {
		w := s.postForm("/auth/login", url.Values{
			"email":       {"alice@example.com"},
			"password":    {"nope"},
			"callbackUrl": {"/admin/jobs"},
		})
		assert.Equal(t, http.StatusSeeOther, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, LoginPath, loc.Path)
		assert.Equal(t, "CredentialsSignin", loc.Query().Get("error"))
		assert.Equal(t, "/admin/jobs", loc.Query().Get("callbackUrl"))
		assert.Empty(t, w.Result().Cookies())
	})
}

func TestSessionAndLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, adminEmail, adminPassword)

	w := s.do(http.MethodGet, "/auth/session", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", decodeBody(t, w)["user"].(map[string]any)["role"])

	w = s.do(http.MethodGet, "/auth/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/logout", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@example.com", "secret1")

	generic := "If an account with that email exists, we've sent a password reset link"
	for _, email := range []string{"alice@example.com", "nobody@example.com"} {
		w := s.do(http.MethodPost, "/auth/forgot-password", fmt.Sprintf(`{"email":%q}`, email), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, generic, decodeBody(t, w)["message"])
	}
	s.auth.Wait()

	s.mail.mu.Lock()
	require.Len(t, s.mail.sent, 1)
	body := s.mail.sent[0].Body
	s.mail.mu.Unlock()

	i := strings.Index(body, "/auth/reset-password/")
	require.GreaterOrEqual(t, i, 0)
	token := body[i+len("/auth/reset-password/") : i+len("/auth/reset-password/")+64]

	w := s.do(http.MethodPost, "/auth/reset-password", fmt.Sprintf(`{"token":%q,"password":"newpass1"}`, token), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/auth/reset-password", fmt.Sprintf(`{"token":%q,"password":"another1"}`, token), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid or expired token", decodeBody(t, w)["error"])

	s.login(t, "alice@example.com", "newpass1")
}

func TestAdminGuardRoutes(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@example.com", "secret1")
	userToken := s.login(t, "alice@example.com", "secret1")
	adminToken := s.login(t, adminEmail, adminPassword)

	for _, token := range []string{"", "garbage", userToken} {
		w := s.do(http.MethodGet, "/admin/dashboard", "", token)
		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, LoginPath+"?callbackUrl=%2Fadmin%2Fdashboard", w.Header().Get("Location"))
	}

	w := s.do(http.MethodGet, "/admin/dashboard", "", adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decodeBody(t, w)["usersCount"])
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	w := s.do(http.MethodPost, "/admin/jobs", `{"title":"Go Engineer","description":"Build services","company":"Acme","location":"Remote","applicationUrl":"https://acme.test/apply"}`, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeBody(t, w)["id"].(string)
	assert.Equal(t, 1, s.news.count())

	w = s.do(http.MethodPost, "/admin/jobs", `{"title":"No URL","description":"x","company":"Acme","location":"Remote"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "applicationUrl is required", decodeBody(t, w)["error"])

	w = s.do(http.MethodPut, "/admin/jobs/"+id, `{"location":"Berlin"}`, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Berlin", decodeBody(t, w)["location"])

	w = s.do(http.MethodGet, "/jobs/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Go Engineer", decodeBody(t, w)["title"])

	w = s.do(http.MethodGet, "/jobs?page=1&limit=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody(t, w)
	assert.EqualValues(t, 1, page["total"])
	assert.EqualValues(t, 5, page["limit"])

	w = s.do(http.MethodDelete, "/admin/jobs/"+id, "", admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/jobs/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/jobs/not-an-id", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)

	w := s.do(http.MethodPost, "/admin/courses", `{"title":"Intro to Go","description":"Basics","provider":"Gopher U","duration":"4 weeks","enrollmentUrl":"https://gopher.test/enroll"}`, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeBody(t, w)["id"].(string)

	body := "--xx\r\nContent-Disposition: form-data; name=\"file\"; filename=\"cover.png\"\r\nContent-Type: image/png\r\n\r\n\x89PNG\r\n\x1a\n\r\n--xx--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/admin/courses/"+id+"/image", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xx")
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "image storage is not configured", decodeBody(t, rec)["error"])
}

func TestUserProfileAndRoles(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@example.com", "secret1")
	token := s.login(t, "alice@example.com", "secret1")

	w := s.do(http.MethodGet, "/user/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPut, "/user/profile", `{"name":"Alice Smith"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Alice Smith", decodeBody(t, w)["user"].(map[string]any)["name"])

	w = s.do(http.MethodPost, "/user/password", `{"currentPassword":"wrong","newPassword":"secret2"}`, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/user/password", `{"currentPassword":"secret1","newPassword":"secret2"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	admin := s.login(t, adminEmail, adminPassword)
	w = s.do(http.MethodGet, "/admin/users?limit=1", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody(t, w)
	assert.EqualValues(t, 2, page["total"])
	assert.Len(t, page["items"], 1)

	alice, err := s.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)

	w = s.do(http.MethodPatch, "/admin/users/"+alice.ID.Hex()+"/role", `{"role":"owner"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "role must be one of: user, admin", decodeBody(t, w)["error"])

	w = s.do(http.MethodPatch, "/admin/users/"+alice.ID.Hex()+"/role", `{"role":"admin"}`, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the old token still carries the role it was issued with
	w = s.do(http.MethodGet, "/admin/dashboard", "", token)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	fresh := s.login(t, "alice@example.com", "secret2")
	w = s.do(http.MethodGet, "/admin/dashboard", "", fresh)
	assert.Equal(t, http.StatusOK, w.Code)
}

func rateLimitedRouter(t *testing.T, trusted []string) *gin.Engine {
	t.Helper()
	users := repository.NewMemoryUserStore()
	cfg := &config.Config{JWTSecret: "controller-test-secret-of-32-or-more-chars", SessionTTLDays: 1}
	auth := services.NewAuthService(users, &sinkMailer{}, cfg)

	r := gin.New()
	require.NoError(t, RegisterRoutes(r, Deps{
		Auth:    auth,
		Jobs:    services.NewListingService[models.Job](repository.NewMemoryListingStore[models.Job]("job"), nil, nil, 0),
		Courses: services.NewListingService[models.Course](repository.NewMemoryListingStore[models.Course]("course"), nil, nil, 0),
		Limiter: middleware.NewMemoryLimiter(2, time.Minute),

		TrustedProxies: trusted,
	}))
	return r
}

// loginAttempts posts three failed logins, each claiming a different client
// address in X-Forwarded-For.
func loginAttempts(r *gin.Engine) []int {
	codes := make([]int, 0, 3)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	return codes
}

func TestAuthRateLimit(t *testing.T) {
	r := rateLimitedRouter(t, nil)

	// forwarded addresses from an untrusted peer are ignored
	codes := loginAttempts(r)
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRateLimit_TrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1
	r := rateLimitedRouter(t, []string{"192.0.2.0/24"})

	codes := loginAttempts(r)
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusUnauthorized}, codes)

	err := RegisterRoutes(gin.New(), Deps{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}

func TestAdminPrefixGuard(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Dana", "dana@example.com", "secret1")
	member := s.login(t, "dana@example.com", "secret1")
	admin := s.login(t, adminEmail, adminPassword)

	requests := []struct{ method, path string }{
		{http.MethodGet, "/admin"},
		{http.MethodGet, "/admin/"},
		{http.MethodGet, "/admin/secret-report"},
		{http.MethodGet, "/admin/jobs"},
		{http.MethodGet, "/admin/dashboard/"},
		{http.MethodPost, "/admin/users"},
	}
	for _, token := range []string{"", member} {
		for _, rq := range requests {
			w := s.do(rq.method, rq.path, "", token)
			assert.Equal(t, http.StatusTemporaryRedirect, w.Code, rq.method+" "+rq.path)
			assert.Equal(t, LoginPath+"?callbackUrl="+url.QueryEscape(rq.path), w.Header().Get("Location"))
		}
	}

	for _, rq := range requests {
		w := s.do(rq.method, rq.path, "", admin)
		assert.Equal(t, http.StatusNotFound, w.Code, rq.method+" "+rq.path)
	}
}
