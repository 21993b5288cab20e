package model

import (
	"fmt"
	"slices"
)

// RejectionReport — два непересекающихся упорядоченных списка
// отклоненных файлов. Пересобирается целиком на каждом drop-событии
// с отказами, со старым состоянием не сливается.
type RejectionReport struct {
	TooLarge    []string `json:"too_large,omitempty"`
	InvalidType []string `json:"invalid_type,omitempty"`
}

func (r RejectionReport) Empty() bool {
	return len(r.TooLarge) == 0 && len(r.InvalidType) == 0
}

func (r RejectionReport) Clone() RejectionReport {
	return RejectionReport{
		TooLarge:    slices.Clone(r.TooLarge),
		InvalidType: slices.Clone(r.InvalidType),
	}
}

// TooLargeLine форматирует строку отчета для слишком большого файла,
// размер округляется до 0.1 MiB.
func TooLargeLine(name string, size int64) string {
	return fmt.Sprintf("%s (%.1f MiB)", name, float64(size)/(1<<20))
}

// InvalidTypeLine форматирует строку отчета для файла неподдерживаемого типа.
func InvalidTypeLine(name, contentType string) string {
	return fmt.Sprintf("%s (type: %s)", name, contentType)
}
