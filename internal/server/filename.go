package server

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"
)

const (
	defaultFileName = "unnamed"
	maxBaseNameLen  = 100
)

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true,
	"COM4": true, "COM5": true, "COM6": true,
	"COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true,
	"LPT4": true, "LPT5": true, "LPT6": true,
	"LPT7": true, "LPT8": true, "LPT9": true,
}

// storedFileName строит имя для сохранения загруженного файла на диск:
// случайный hex-префикс (защита от коллизий между задачами) плюс
// санированное клиентское имя. Клиентскому имени не доверяем: путь
// обрезается, опасные символы заменяются, зарезервированные имена
// windows дополняются подчеркиванием.
//
// Примеры:
//
//	"photo.png"          -> "<hex>_photo.png"
//	"../../etc/passwd"   -> "<hex>_passwd"
//	"con.jpg"            -> "<hex>_con_.jpg"
func storedFileName(origName string) string {
	base, ext := splitName(origName)

	base = sanitizeName(base, maxBaseNameLen)
	if reservedNames[strings.ToUpper(base)] {
		base += "_"
	}

	return randomHex() + "_" + base + sanitizeExt(ext)
}

func randomHex() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// splitName обрезает путь и отделяет расширение (все после последней точки).
func splitName(name string) (base, ext string) {
	if p := strings.LastIndexAny(name, `/\`); p != -1 {
		name = name[p+1:]
	}
	if p := strings.LastIndexByte(name, '.'); p > 0 {
		return name[:p], name[p:]
	}
	return name, ""
}

// ASCII опасные символы
const asciiProblem = `<>:"/\|?*~.;#$%&'(){}[]!` + "`"

func sanitizeName(s string, maxLen int) string {
	var sb strings.Builder
	sb.Grow(maxLen)

	prev := '-' // чтобы не писать лидирующий '-'
	n := 0
	for _, r := range s {
		if n >= maxLen {
			break
		}

		switch {
		case unicode.IsSpace(r):
			r = '-'
		case unicode.IsControl(r) || !unicode.IsPrint(r):
			// Управляющие и неграфические символы удаляются
			continue
		case strings.ContainsRune(asciiProblem, r):
			r = '-'
		}

		// Схлопываем последовательные '-'
		if r == '-' && prev == '-' {
			continue
		}

		sb.WriteRune(r)
		prev = r
		n++
	}

	name := strings.TrimSuffix(sb.String(), "-")
	if name == "" {
		return defaultFileName
	}
	return name
}

// sanitizeExt пропускает только короткие алфавитно-цифровые расширения.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 8 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}
