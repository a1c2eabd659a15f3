package render

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldstamp/fieldstamp/internal/pdftest"
)

func TestRemoteRenderSuccess(t *testing.T) {
	rendered := pdftest.MinimalPDF(2)

	var gotFields map[string]string
	var gotTemplateLen int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("backend failed to parse request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("template")
		if err != nil {
			t.Errorf("backend missing template part: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotTemplateLen = len(data)

		if err := json.Unmarshal([]byte(r.FormValue("fields")), &gotFields); err != nil {
			t.Errorf("backend failed to decode fields: %v", err)
		}

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(rendered)
	}))
	defer srv.Close()

	template := pdftest.MinimalPDF(1)
	renderer := NewRemote(srv.URL, 5*time.Second)

	out, err := renderer.Render(template, map[string]string{"first_name": "Jane"})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	if got := pageCount(t, out); got != 2 {
		t.Errorf("output page count = %d, want 2", got)
	}
	if gotTemplateLen != len(template) {
		t.Errorf("backend received %d template bytes, want %d", gotTemplateLen, len(template))
	}
	if gotFields["first_name"] != "Jane" {
		t.Errorf("backend fields = %v, want first_name=Jane", gotFields)
	}
}

func TestRemoteRenderBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	renderer := NewRemote(srv.URL, 5*time.Second)
	_, err := renderer.Render(pdftest.MinimalPDF(1), nil)
	if !errors.Is(err, ErrRenderBackend) {
		t.Errorf("Render() error = %v, want ErrRenderBackend", err)
	}
}

func TestRemoteRenderUnreachableBackend(t *testing.T) {
	renderer := NewRemote("http://127.0.0.1:1/render", time.Second)
	_, err := renderer.Render(pdftest.MinimalPDF(1), nil)
	if !errors.Is(err, ErrRenderBackend) {
		t.Errorf("Render() error = %v, want ErrRenderBackend", err)
	}
}

func TestRemoteRenderGarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a pdf"))
	}))
	defer srv.Close()

	renderer := NewRemote(srv.URL, 5*time.Second)
	_, err := renderer.Render(pdftest.MinimalPDF(1), nil)
	if !errors.Is(err, ErrRenderBackend) {
		t.Errorf("Render() error = %v, want ErrRenderBackend", err)
	}
}
