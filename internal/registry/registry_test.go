package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"ocrup/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0o644)
	be.Err(t, err, nil)
	return path
}

func TestAcquire(t *testing.T) {
	reg, err := New(t.TempDir())
	be.Err(t, err, nil)
	defer reg.Close()

	src := writeFile(t, t.TempDir(), "a.png", "payload")

	handle, err := reg.Acquire("a.png", src)
	be.Err(t, err, nil)
	be.True(t, strings.HasPrefix(handle, "preview://"))
	be.True(t, reg.Live(handle))
	be.Equal(t, reg.Len(), 1)

	// превью — независимая копия байтов
	os.Remove(src)
	be.True(t, reg.Live(handle))
}

func TestAcquireMissingSource(t *testing.T) {
	reg, err := New(t.TempDir())
	be.Err(t, err, nil)
	defer reg.Close()

	_, err = reg.Acquire("a.png", "/no/such/file")
	be.Err(t, err)
	be.Equal(t, reg.Len(), 0)
}

func TestReleaseOnce(t *testing.T) {
	reg, err := New(t.TempDir())
	be.Err(t, err, nil)
	defer reg.Close()

	src := writeFile(t, t.TempDir(), "a.png", "payload")
	handle, err := reg.Acquire("a.png", src)
	be.Err(t, err, nil)

	reg.Release(handle)
	be.True(t, !reg.Live(handle))
	be.Equal(t, reg.Len(), 0)

	// повторный отзыв — no-op
	reg.Release(handle)
	be.Equal(t, reg.Len(), 0)
}

func TestReleaseAll(t *testing.T) {
	reg, err := New(t.TempDir())
	be.Err(t, err, nil)
	defer reg.Close()

	dir := t.TempDir()
	var files []model.StagedFile
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		src := writeFile(t, dir, name, name)
		handle, err := reg.Acquire(name, src)
		be.Err(t, err, nil)
		files = append(files, model.StagedFile{Name: name, Preview: handle})
	}
	be.Equal(t, reg.Len(), 3)

	// отзыв предыдущего набора целиком
	reg.ReleaseAll(files[:2])
	be.Equal(t, reg.Len(), 1)
	be.True(t, reg.Live(files[2].Preview))

	reg.ReleaseAll(files)
	be.Equal(t, reg.Len(), 0)
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	reg, err := New(filepath.Join(dir, "previews"))
	be.Err(t, err, nil)

	src := writeFile(t, dir, "a.png", "payload")
	_, err = reg.Acquire("a.png", src)
	be.Err(t, err, nil)

	reg.Close()
	be.Equal(t, reg.Len(), 0)

	_, err = os.Stat(filepath.Join(dir, "previews"))
	be.True(t, os.IsNotExist(err))

	// после Close новые превью не выдаются
	_, err = reg.Acquire("a.png", src)
	be.Err(t, err, ErrClosed)

	// повторный Close — no-op
	reg.Close()
}
