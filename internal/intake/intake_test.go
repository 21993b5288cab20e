package intake

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"ocrup/internal/config"
	"ocrup/internal/registry"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0}
	pdfMagic  = []byte("%PDF-1.7")
)

func writeFile(t *testing.T, dir, name string, magic []byte, size int) string {
	t.Helper()
	buf := make([]byte, size)
	copy(buf, magic)
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, buf, 0o644)
	be.Err(t, err, nil)
	return path
}

func newIntake(t *testing.T, cfg config.Intake) (*Intake, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	be.Err(t, err, nil)
	t.Cleanup(reg.Close)
	return New(cfg, reg), reg
}

func TestInspectVerdicts(t *testing.T) {
	dir := t.TempDir()
	in, _ := newIntake(t, config.Intake{MaxFiles: 20, MaxFileSize: 1024})

	paths := []string{
		writeFile(t, dir, "a.png", pngMagic, 100),
		writeFile(t, dir, "b.jpg", jpegMagic, 200),
		writeFile(t, dir, "doc.pdf", pdfMagic, 100),
		writeFile(t, dir, "junk.png", []byte("not an image"), 100),
		writeFile(t, dir, "big.png", pngMagic, 2048),
	}

	cands, err := in.Inspect(context.Background(), paths)
	be.Err(t, err, nil)
	be.Equal(t, len(cands), 5)

	// порядок drop сохраняется
	be.Equal(t, cands[0].Name, "a.png")
	be.Equal(t, cands[0].Verdict, Accepted)
	be.Equal(t, cands[0].ContentType, "image/png")

	be.Equal(t, cands[1].Verdict, Accepted)
	be.Equal(t, cands[1].ContentType, "image/jpeg")

	be.Equal(t, cands[2].Verdict, RejectedType)
	be.Equal(t, cands[2].ContentType, "application/pdf")

	be.Equal(t, cands[3].Verdict, RejectedType)
	be.Equal(t, cands[3].ContentType, "unknown")

	be.Equal(t, cands[4].Verdict, RejectedSize)
	be.Equal(t, cands[4].Size, 2048)
}

func TestInspectMissingFile(t *testing.T) {
	in, _ := newIntake(t, config.Intake{MaxFiles: 20, MaxFileSize: 1024})

	_, err := in.Inspect(context.Background(), []string{"/no/such/file.png"})
	be.Err(t, err)
}

func TestPlanTruncation(t *testing.T) {
	in, _ := newIntake(t, config.Intake{MaxFiles: 3, MaxFileSize: 1024})

	cands := []Candidate{
		{Name: "1.png", Verdict: Accepted},
		{Name: "2.png", Verdict: Accepted},
		{Name: "3.png", Verdict: Accepted},
		{Name: "4.png", Verdict: Accepted},
	}

	// уже застейджен один файл: место только под два
	accepted, report := in.Plan(1, cands)
	be.Equal(t, len(accepted), 2)
	be.Equal(t, accepted[0].Name, "1.png")
	be.Equal(t, accepted[1].Name, "2.png")
	be.True(t, report.Empty())

	// лимит уже выбран: не принимается ничего
	accepted, _ = in.Plan(3, cands)
	be.Equal(t, len(accepted), 0)
}

func TestPlanReport(t *testing.T) {
	in, _ := newIntake(t, config.Intake{MaxFiles: 20, MaxFileSize: 10 << 20})

	cands := []Candidate{
		{Name: "big.png", Size: 11010048, Verdict: RejectedSize}, // ровно 10.5 MiB
		{Name: "doc.pdf", ContentType: "application/pdf", Verdict: RejectedType},
		{Name: "ok.png", Verdict: Accepted},
	}

	accepted, report := in.Plan(0, cands)
	be.Equal(t, len(accepted), 1)
	be.Equal(t, report.TooLarge, []string{"big.png (10.5 MiB)"})
	be.Equal(t, report.InvalidType, []string{"doc.pdf (type: application/pdf)"})
}

func TestStage(t *testing.T) {
	dir := t.TempDir()
	in, reg := newIntake(t, config.Intake{MaxFiles: 20, MaxFileSize: 1024})

	paths := []string{
		writeFile(t, dir, "a.png", pngMagic, 64),
		writeFile(t, dir, "b.png", pngMagic, 64),
	}
	cands, err := in.Inspect(context.Background(), paths)
	be.Err(t, err, nil)

	files, err := in.Stage(cands)
	be.Err(t, err, nil)
	be.Equal(t, len(files), 2)

	// порядок drop сохранен, у каждого файла живое превью
	be.Equal(t, files[0].Name, "a.png")
	be.Equal(t, files[1].Name, "b.png")
	for _, f := range files {
		be.True(t, reg.Live(f.Preview))
	}
}

func TestGetFileTypeBySignature(t *testing.T) {
	tests := []struct {
		name     string
		magic    []byte
		mimeType string
		wantErr  bool
	}{
		{name: "png", magic: pngMagic, mimeType: "image/png"},
		{name: "jpeg", magic: jpegMagic, mimeType: "image/jpeg"},
		{name: "gif", magic: []byte("GIF89a"), mimeType: "image/gif"},
		{name: "webp", magic: []byte("RIFF\x10\x00\x00\x00WEBP"), mimeType: "image/webp"},
		{name: "riff_not_webp", magic: []byte("RIFF\x10\x00\x00\x00WAVE"), wantErr: true},
		{name: "tiff_le", magic: []byte{0x49, 0x49, 0x2A, 0x00}, mimeType: "image/tiff"},
		{name: "empty", magic: nil, wantErr: true},
		{name: "unknown", magic: bytes.Repeat([]byte{0x00}, 12), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft, err := getFileTypeBySignature(tt.magic)
			if tt.wantErr {
				be.Err(t, err, ErrUnknownFileType)
				return
			}
			be.Err(t, err, nil)
			be.Equal(t, ft.MIMEType, tt.mimeType)
		})
	}
}
