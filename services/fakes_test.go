package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/princinho/jobportal/config"
	"github.com/princinho/jobportal/mailer"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
	"github.com/princinho/jobportal/utils"
)

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

const testSecret = "test-secret-that-is-at-least-32-characters"

func testConfig() *config.Config {
	return &config.Config{
		AppURL:         "http://portal.test",
		JWTSecret:      testSecret,
		SessionTTLDays: 30,
	}
}

// recordingMailer keeps every message; sends to addresses in fail return an error.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]bool
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

var resetLink = regexp.MustCompile(`/auth/reset-password/([0-9a-f]{64})`)

// lastResetToken pulls the plaintext token out of the newest reset email to to.
func (m *recordingMailer) lastResetToken(t *testing.T, to string) string {
	t.Helper()
	msgs := m.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To != to {
			continue
		}
		if match := resetLink.FindStringSubmatch(msgs[i].Body); match != nil {
			return match[1]
		}
	}
	t.Fatalf("no reset email sent to %s", to)
	return ""
}

func newAuthService(t *testing.T) (*AuthService, *repository.MemoryUserStore, *recordingMailer) {
	t.Helper()
	users := repository.NewMemoryUserStore()
	mail := &recordingMailer{}
	return NewAuthService(users, mail, testConfig()), users, mail
}

type recordingAnnouncer struct {
	mu       sync.Mutex
	listings []models.Listing
}

func (a *recordingAnnouncer) NotifyNewListing(_ context.Context, l models.Listing) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listings = append(a.listings, l)
}

// memoryStorage is an ObjectStorage backed by a map.
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string]string)}
}

const storagePrefix = "https://cdn.portal.test/bucket/"

func (s *memoryStorage) Put(_ context.Context, key, contentType string, _ *multipart.FileHeader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = contentType
	return storagePrefix + key, nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) KeyFromURL(raw string) (string, bool) {
	if !strings.HasPrefix(raw, storagePrefix) {
		return "", false
	}
	return strings.TrimPrefix(raw, storagePrefix), true
}

func (s *memoryStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fileHeader builds a real multipart.FileHeader the way gin would hand it over.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1, fmt.Sprintf("form files for %s", filename))
	return files[0]
}
