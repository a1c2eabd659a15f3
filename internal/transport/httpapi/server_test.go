package httpapi

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstamp/fieldstamp/internal/config"
	"github.com/fieldstamp/fieldstamp/internal/derive"
	"github.com/fieldstamp/fieldstamp/internal/intake"
	"github.com/fieldstamp/fieldstamp/internal/pdftest"
	"github.com/fieldstamp/fieldstamp/internal/pipeline"
	"github.com/fieldstamp/fieldstamp/internal/render"
	"github.com/fieldstamp/fieldstamp/internal/session"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fields, err := intake.BuildFields(config.DefaultFields())
	require.NoError(t, err)

	pipe := pipeline.New(
		session.NewStore(30*time.Minute),
		intake.NewMachine(fields),
		derive.NewGenerator(rand.New(rand.NewSource(1)), nil),
		render.NewOverlay(config.DefaultPlacements()),
		render.NewInspector(config.DefaultMaxTemplateSize),
		"delivery_datetime",
	)

	s := &Server{pipe: pipe, maxSize: config.DefaultMaxTemplateSize}
	return s.router()
}

func postTemplate(t *testing.T, r *gin.Engine, user string, doc []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+user+"/template", bytes.NewReader(doc))
	req.Header.Set("Content-Type", "application/pdf")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postMessage(t *testing.T, r *gin.Engine, user, text string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"text": text})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+user+"/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["message"]
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFullSessionOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := postTemplate(t, r, "u1", pdftest.MinimalPDF(2))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Enter First Name:", message(t, w))

	answers := []string{"Jane", "Doe", "jane@example.com", "1Z999", "49.99"}
	for _, a := range answers {
		w = postMessage(t, r, "u1", a)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = postMessage(t, r, "u1", "2025-05-23 02:15 PM")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Regexp(t, regexp.MustCompile(`^attachment; filename="report-C\d{4}-0\d{7}\.pdf"$`),
		w.Header().Get("Content-Disposition"))

	info, err := render.NewInspector(config.DefaultMaxTemplateSize).Inspect(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
}

func TestMultipartTemplateUpload(t *testing.T) {
	r := newTestRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("template", "template.pdf")
	require.NoError(t, err)
	_, err = part.Write(pdftest.MinimalPDF(1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/u1/template", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Enter First Name:", message(t, w))
}

func TestMessageWithoutSession(t *testing.T) {
	r := newTestRouter(t)

	w := postMessage(t, r, "nobody", "Jane")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, message(t, w), "No active document")
}

func TestInvalidAnswerReturnsValidationMessage(t *testing.T) {
	r := newTestRouter(t)

	postTemplate(t, r, "u1", pdftest.MinimalPDF(1))
	postMessage(t, r, "u1", "Jane")
	postMessage(t, r, "u1", "Doe")

	w := postMessage(t, r, "u1", "not-an-email")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, message(t, w), "email address")
}

func TestCancelSession(t *testing.T) {
	r := newTestRouter(t)

	postTemplate(t, r, "u1", pdftest.MinimalPDF(1))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/u1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cancelled.", message(t, w))

	w = postMessage(t, r, "u1", "Jane")
	assert.Contains(t, message(t, w), "No active document")
}

func TestRejectsBadRequests(t *testing.T) {
	r := newTestRouter(t)

	// Empty template body.
	w := postTemplate(t, r, "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Message without a text field.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/u1/messages",
		bytes.NewReader([]byte(`{"answer":"Jane"}`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
