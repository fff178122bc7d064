package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPError is returned when the server answers with a non-2xx status.
type HTTPError struct {
	Method string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s request failed with status %d", e.Method, e.Status)
}

// HTTPStorageAdapter stores the recording at a URL: PUT to save, GET to load
// and DELETE to clear.
type HTTPStorageAdapter struct {
	client  *http.Client
	url     string
	headers map[string]string
}

// Ensure HTTPStorageAdapter implements StorageAdapter interface
var _ StorageAdapter = (*HTTPStorageAdapter)(nil)

// NewHTTPStorageAdapter creates a new HTTPStorageAdapter instance.
//
// Parameters:
//   - url: Target URL of the recording
//   - headers: Extra headers sent with every request, such as Authorization
func NewHTTPStorageAdapter(url string, headers map[string]string) *HTTPStorageAdapter {
	return &HTTPStorageAdapter{
		client:  &http.Client{},
		url:     url,
		headers: headers,
	}
}

// WithClient replaces the HTTP client.
func (h *HTTPStorageAdapter) WithClient(client *http.Client) *HTTPStorageAdapter {
	h.client = client
	return h
}

func (h *HTTPStorageAdapter) do(ctx context.Context, method string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/zip")
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// Save uploads data with PUT.
func (h *HTTPStorageAdapter) Save(ctx context.Context, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	resp, err := h.do(ctx, http.MethodPut, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: http.MethodPut, Status: resp.StatusCode}
	}
	return nil
}

// Load downloads the recording with GET.
// Returns ErrNoRecording on 404.
func (h *HTTPStorageAdapter) Load(ctx context.Context) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoRecording
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Method: http.MethodGet, Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// Clear removes the recording with DELETE. A 404 counts as cleared.
func (h *HTTPStorageAdapter) Clear(ctx context.Context) error {
	resp, err := h.do(ctx, http.MethodDelete, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: http.MethodDelete, Status: resp.StatusCode}
	}
	return nil
}

func (h *HTTPStorageAdapter) Location() string {
	return h.url
}
