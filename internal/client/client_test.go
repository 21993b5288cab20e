package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"ocrup/internal/model"
)

func TestGetToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.Method, http.MethodGet)
		be.Equal(t, r.URL.Path, "/api/get-token")
		json.NewEncoder(w).Encode(map[string]string{"token": "secret"})
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL+"/api/")

	resp, err := c.GetToken(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, resp.Token, "secret")
}

func TestGetTokenEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	_, err := c.GetToken(context.Background())
	be.Err(t, err)
}

func stageFile(t *testing.T, dir, name, content string) model.StagedFile {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0o644)
	be.Err(t, err, nil)
	return model.StagedFile{Name: name, Path: path, Size: int64(len(content))}
}

func TestSubmit(t *testing.T) {
	dir := t.TempDir()
	files := []model.StagedFile{
		stageFile(t, dir, "a.png", "aaa"),
		stageFile(t, dir, "b.png", "bbb"),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.Method, http.MethodPost)
		be.Equal(t, r.URL.Path, "/ocr")
		be.Equal(t, r.Header.Get("Authorization"), "Bearer secret")

		err := r.ParseMultipartForm(1 << 20)
		be.Err(t, err, nil)

		headers := r.MultipartForm.File["files"]
		be.Equal(t, len(headers), 2)
		be.Equal(t, headers[0].Filename, "a.png")
		be.Equal(t, headers[1].Filename, "b.png")

		// уходят исходные байты файла
		f, err := headers[0].Open()
		be.Err(t, err, nil)
		defer f.Close()
		body, err := io.ReadAll(f)
		be.Err(t, err, nil)
		be.Equal(t, string(body), "aaa")

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"task_uid": "task-1"})
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	resp, err := c.Submit(context.Background(), "secret", files)
	be.Err(t, err, nil)
	be.Equal(t, resp.TaskUID, "task-1")
}

func TestSubmitServerError(t *testing.T) {
	dir := t.TempDir()
	files := []model.StagedFile{stageFile(t, dir, "a.png", "aaa")}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	_, err := c.Submit(context.Background(), "secret", files)
	be.Err(t, err)
}

func TestSubmitUnauthorized(t *testing.T) {
	dir := t.TempDir()
	files := []model.StagedFile{stageFile(t, dir, "a.png", "aaa")}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid or rotated token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	_, err := c.Submit(context.Background(), "stale", files)
	be.Err(t, err, model.ErrInvalidToken)
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.URL.Path, "/get-status/task-1")
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "processing",
			"progress": 0.4,
			"messages": "Processing a.png.",
		})
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	resp, err := c.Status(context.Background(), "task-1")
	be.Err(t, err, nil)
	be.Equal(t, resp.Status, model.StatusProcessing)
	be.Equal(t, resp.Progress, 0.4)
	be.Equal(t, resp.Messages, "Processing a.png.")
}

func TestStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "task not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	_, err := c.Status(context.Background(), "gone")
	be.Err(t, err, model.ErrTaskNotFound)
}

func TestResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.URL.Path, "/get-results/task-1")
		json.NewEncoder(w).Encode(map[string]any{
			"results": map[string][]string{
				"a.png": {"a.png", "hello"},
				"b.png": {"b.png", "world"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	results, err := c.Results(context.Background(), "task-1")
	be.Err(t, err, nil)
	be.Equal(t, results, model.ResultSet{"a.png": "hello", "b.png": "world"})
}

func TestResultsMalformedPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": map[string][]string{
				"a.png": {"hello"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	_, err := c.Results(context.Background(), "task-1")
	be.Err(t, err)
}
