package server

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine распознает текст одного изображения.
type Engine interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// TesseractEngine — движок OCR поверх tesseract (gosseract).
// Клиент создается на каждый вызов: он не потокобезопасен и дешев
// относительно самого распознавания.
type TesseractEngine struct {
	langs []string
}

func NewTesseractEngine(langs []string) *TesseractEngine {
	return &TesseractEngine{langs: langs}
}

func (e *TesseractEngine) Recognize(ctx context.Context, path string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c := gosseract.NewClient()
	defer c.Close()

	if len(e.langs) > 0 {
		if err := c.SetLanguage(e.langs...); err != nil {
			return "", err
		}
	}
	if err := c.SetImage(path); err != nil {
		return "", err
	}

	text, err := c.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
