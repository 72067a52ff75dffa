package endpoint

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ariebrainware/medelle-reminder/mailer"
	"github.com/ariebrainware/medelle-reminder/middleware"
	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/ariebrainware/medelle-reminder/store"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("no space left on device")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) List(context.Context) ([]model.PatientRecord, error) { return nil, errDiskFull }
func (brokenStore) Append(context.Context, *model.PatientRecord) (int64, error) {
	return 0, errDiskFull
}
func (brokenStore) Remove(context.Context, int64) (bool, error) { return false, errDiskFull }
func (brokenStore) MarkNotified(context.Context, int64, time.Time) error { return errDiskFull }
func (brokenStore) Reset(context.Context) error { return errDiskFull }
func (brokenStore) Close() error { return nil }

type stubTransport struct {
	err  error
	sent []mailer.Message
}

func (s *stubTransport) Send(_ context.Context, msg mailer.Message) (mailer.Receipt, error) {
	s.sent = append(s.sent, msg)
	if s.err != nil {
		return mailer.Receipt{}, s.err
	}
	return mailer.Receipt{MessageID: "abc@relay", PreviewURL: "https://preview.local/abc@relay"}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	restore := util.SetLoggerForTest(zerolog.Nop())
	t.Cleanup(restore)
	return gin.New()
}

// setupEndpointTest returns a router with a fresh JSON store injected.
func setupEndpointTest(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	s, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "patients.json"))
	require.NoError(t, err)

	r := newTestRouter(t)
	r.Use(middleware.StoreMiddleware(s))
	return r, s
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, w.Code, w.Body.String())
}

func assertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, response map[string]interface{}) {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code)
	if response == nil {
		return
	}
	if success, ok := response["success"].(bool); ok {
		assert.True(t, success)
	}
}
