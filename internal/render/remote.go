package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxBackendErrorBody bounds how much of a failed backend response is
// surfaced in the error message.
const maxBackendErrorBody = 512

// Remote delegates rendering to an out-of-process backend over HTTP.
// The backend receives the template and the field values and returns the
// completed document bytes.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a remote renderer posting to url.
func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Render posts the template and values to the backend as multipart form
// data ("template" file part, "fields" JSON part) and returns the
// response body. Any transport or backend failure yields
// ErrRenderBackend; a response that does not parse as a PDF does too.
func (r *Remote) Render(template []byte, values map[string]string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("template", "template.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	if _, err := part.Write(template); err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}

	fieldsJSON, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field values: %w", err)
	}
	if err := writer.WriteField("fields", string(fieldsJSON)); err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderBackend, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxBackendErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRenderBackend, resp.StatusCode,
			strings.TrimSpace(string(snippet)))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderBackend, err)
	}
	if _, err := readContext(out); err != nil {
		return nil, fmt.Errorf("%w: backend returned an unreadable document", ErrRenderBackend)
	}
	return out, nil
}
