// Package registry владеет превью-хэндлами застейдженных файлов.
//
// Хэндл — отзываемая ссылка вида preview://<hex> на копию байтов файла
// во временном каталоге registry. Хэндл создается один раз при
// стейджинге и освобождается ровно один раз: точечно через Release или
// пакетно через ReleaseAll по предыдущему набору файлов.
package registry

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"ocrup/internal/model"
)

const handlePrefix = "preview://"

var ErrClosed = errors.New("registry closed")

type Registry struct {
	mu      sync.Mutex
	dir     string
	handles map[string]string // handle -> путь копии превью
	closed  bool
}

// New создает registry с каталогом превью. Пустой dir означает
// временный каталог, который будет удален в Close.
func New(dir string) (*Registry, error) {
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "ocrup-previews-")
		if err != nil {
			return nil, fmt.Errorf("create preview dir failed: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir failed: %w", err)
	}

	return &Registry{
		dir:     dir,
		handles: make(map[string]string),
	}, nil
}

// Acquire копирует байты файла в каталог registry и возвращает хэндл.
func (r *Registry) Acquire(name, srcPath string) (string, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open %q failed: %w", srcPath, err)
	}
	defer src.Close()

	uniq := fmt.Sprintf("%016x", rand.Uint64())
	handle := handlePrefix + uniq
	dstPath := filepath.Join(r.dir, uniq+"_"+filepath.Base(name))

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create preview failed: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("copy preview failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		os.Remove(dstPath)
		return "", ErrClosed
	}

	r.handles[handle] = dstPath
	return handle, nil
}

// Release освобождает один хэндл. Повторный вызов для уже
// освобожденного хэндла — no-op (идемпотентность отзыва).
func (r *Registry) Release(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(handle)
}

// ReleaseAll отзывает превью всех файлов предыдущего набора. Вызывается
// детерминированно на каждой замене набора файлов и при teardown.
func (r *Registry) ReleaseAll(prev []model.StagedFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range prev {
		r.release(f.Preview)
	}
}

func (r *Registry) release(handle string) {
	path, ok := r.handles[handle]
	if !ok {
		return
	}
	delete(r.handles, handle)
	os.Remove(path)
}

// Live сообщает, жив ли еще хэндл.
func (r *Registry) Live(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[handle]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close освобождает все хэндлы и удаляет каталог превью.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for handle := range r.handles {
		r.release(handle)
	}
	os.RemoveAll(r.dir)
}
