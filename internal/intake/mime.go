package intake

import (
	"bytes"
	"errors"
	"strings"
)

// magicLen — сколько байт заголовка нужно для распознавания сигнатуры
// (12 покрывает RIFF....WEBP).
const magicLen = 12

type FileType struct {
	MIMEType   string
	Magic      []byte // сигнатура файла
	MagicAt8   []byte // вторая часть сигнатуры со смещением 8 (RIFF-контейнеры)
	Extensions []string
}

func (f FileType) Extension() string {
	if len(f.Extensions) == 0 {
		return ""
	}
	return f.Extensions[0]
}

var fileTypes = []FileType{
	{
		MIMEType:   "image/jpeg",
		Magic:      []byte{0xFF, 0xD8, 0xFF}, // ÿØÿ
		Extensions: []string{".jpg", ".jpeg"},
	},
	{
		MIMEType:   "image/png",
		Magic:      []byte{0x89, 0x50, 0x4E, 0x47}, // ‰PNG
		Extensions: []string{".png"},
	},
	{
		MIMEType:   "image/gif",
		Magic:      []byte{0x47, 0x49, 0x46, 0x38}, // GIF8
		Extensions: []string{".gif"},
	},
	{
		MIMEType:   "image/webp",
		Magic:      []byte{0x52, 0x49, 0x46, 0x46}, // RIFF
		MagicAt8:   []byte{0x57, 0x45, 0x42, 0x50}, // WEBP
		Extensions: []string{".webp"},
	},
	{
		MIMEType:   "image/bmp",
		Magic:      []byte{0x42, 0x4D}, // BM
		Extensions: []string{".bmp"},
	},
	{
		MIMEType:   "image/tiff",
		Magic:      []byte{0x49, 0x49, 0x2A, 0x00}, // II*
		Extensions: []string{".tif", ".tiff"},
	},
	{
		MIMEType:   "image/tiff",
		Magic:      []byte{0x4D, 0x4D, 0x00, 0x2A}, // MM*
		Extensions: []string{".tif", ".tiff"},
	},
	{
		MIMEType:   "application/pdf",
		Magic:      []byte{0x25, 0x50, 0x44, 0x46}, // %PDF
		Extensions: []string{".pdf"},
	},
}

var ErrUnknownFileType = errors.New("unknown file type")

func getFileTypeBySignature(magic []byte) (FileType, error) {
	for _, ft := range fileTypes {
		if !bytes.HasPrefix(magic, ft.Magic) {
			continue
		}
		if ft.MagicAt8 != nil {
			if len(magic) < 8+len(ft.MagicAt8) || !bytes.HasPrefix(magic[8:], ft.MagicAt8) {
				continue
			}
		}
		return ft, nil
	}
	return FileType{}, ErrUnknownFileType
}

// isImage проверяет принадлежность типа принимаемому семейству image/*.
func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
