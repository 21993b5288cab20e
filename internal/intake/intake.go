// Package intake принимает пакет файлов-кандидатов, выносит вердикты
// по лимитам и типам и стейджит принятые файлы с выдачей превью.
package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"ocrup/internal/config"
	"ocrup/internal/model"
	"ocrup/internal/registry"
)

type Verdict int

const (
	Accepted Verdict = iota
	RejectedType
	RejectedSize
)

// Candidate — файл-кандидат с вынесенным вердиктом.
type Candidate struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
	Verdict     Verdict
}

type Intake struct {
	cfg config.Intake
	reg *registry.Registry
}

func New(cfg config.Intake, reg *registry.Registry) *Intake {
	return &Intake{cfg: cfg, reg: reg}
}

// Inspect обследует пути и выносит по вердикту на файл. Порядок
// кандидатов совпадает с порядком путей (drop order). Тип определяется
// по сигнатуре содержимого, не по расширению. Нечитаемый путь — ошибка
// всего drop-события.
func (in *Intake) Inspect(ctx context.Context, paths []string) ([]Candidate, error) {
	cands := make([]Candidate, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			cand, err := in.inspectFile(path)
			cands[i] = cand
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cands, nil
}

func (in *Intake) inspectFile(path string) (Candidate, error) {
	cand := Candidate{
		Name: filepath.Base(path),
		Path: path,
	}

	f, err := os.Open(path)
	if err != nil {
		return cand, fmt.Errorf("open %q failed: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return cand, fmt.Errorf("stat %q failed: %w", path, err)
	}
	cand.Size = st.Size()

	// Чтение сигнатуры
	magic := make([]byte, magicLen)
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return cand, fmt.Errorf("read %q failed: %w", path, err)
	}

	fileType, err := getFileTypeBySignature(magic[:n])
	if err != nil {
		cand.ContentType = "unknown"
		cand.Verdict = RejectedType
		return cand, nil
	}
	cand.ContentType = fileType.MIMEType

	switch {
	case !isImage(cand.ContentType):
		cand.Verdict = RejectedType
	case cand.Size > in.cfg.MaxFileSize:
		cand.Verdict = RejectedSize
	default:
		cand.Verdict = Accepted
	}

	return cand, nil
}

// Plan обрезает принятых кандидатов до свободного места под глобальным
// лимитом и классифицирует отказы в отчет. Отчет собирается с нуля на
// каждое drop-событие.
func (in *Intake) Plan(current int, cands []Candidate) ([]Candidate, model.RejectionReport) {
	var report model.RejectionReport

	room := in.cfg.MaxFiles - current
	if room < 0 {
		room = 0
	}

	accepted := make([]Candidate, 0, len(cands))
	for _, cand := range cands {
		switch cand.Verdict {
		case RejectedType:
			report.InvalidType = append(report.InvalidType, model.InvalidTypeLine(cand.Name, cand.ContentType))
		case RejectedSize:
			report.TooLarge = append(report.TooLarge, model.TooLargeLine(cand.Name, cand.Size))
		case Accepted:
			if len(accepted) < room {
				accepted = append(accepted, cand)
			} else {
				slog.Debug("batch cap reached, candidate dropped", "name", cand.Name)
			}
		}
	}

	return accepted, report
}

// Stage выдает превью принятым кандидатам и возвращает застейдженные
// файлы в порядке drop.
func (in *Intake) Stage(cands []Candidate) ([]model.StagedFile, error) {
	files := make([]model.StagedFile, 0, len(cands))
	for _, cand := range cands {
		preview, err := in.reg.Acquire(cand.Name, cand.Path)
		if err != nil {
			return files, fmt.Errorf("acquire preview for %q failed: %w", cand.Name, err)
		}
		files = append(files, model.StagedFile{
			Name:        cand.Name,
			Path:        cand.Path,
			Size:        cand.Size,
			ContentType: cand.ContentType,
			Preview:     preview,
		})
	}
	return files, nil
}
