// Package blob provides the remote blob-store collaborator used by the
// gallery and notice image paths. It is outside the sync core: uploads
// are direct remote calls, not cached writes.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Store uploads binary blobs and resolves download URLs.
type Store interface {
	// Upload stores data under path and returns an opaque ref.
	Upload(ctx context.Context, path string, data []byte) (string, error)

	// DownloadURL resolves a ref to a fetchable URL.
	DownloadURL(ctx context.Context, ref string) (string, error)
}

// HTTP is a Store backed by a simple REST upload endpoint.
type HTTP struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTP creates a blob client against baseURL.
func NewHTTP(baseURL, apiKey string) *HTTP {
	return &HTTP{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

// Upload implements Store.Upload via a multipart POST.
func (h *HTTP) Upload(ctx context.Context, path string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	_ = w.WriteField("path", path)
	part, err := w.CreateFormFile("file", path)
	if err != nil {
		return "", fmt.Errorf("blob: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("blob: write file failed: %w", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("blob: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("blob: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("blob: decode response failed: %w", err)
	}
	return result.Ref, nil
}

// DownloadURL implements Store.DownloadURL.
func (h *HTTP) DownloadURL(ctx context.Context, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		h.BaseURL+"/url?ref="+url.QueryEscape(ref), nil)
	if err != nil {
		return "", fmt.Errorf("blob: create request failed: %w", err)
	}
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("blob: url resolve failed (%d): %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("blob: decode response failed: %w", err)
	}
	return result.URL, nil
}

// Memory is an in-process Store for tests.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Upload implements Store.Upload; the path doubles as the ref.
func (m *Memory) Upload(ctx context.Context, path string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = append([]byte(nil), data...)
	return path, nil
}

// DownloadURL implements Store.DownloadURL.
func (m *Memory) DownloadURL(ctx context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[ref]; !ok {
		return "", fmt.Errorf("blob: unknown ref %s", ref)
	}
	return "memory://" + ref, nil
}
