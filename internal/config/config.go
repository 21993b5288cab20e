package config

import (
	"log/slog"
	"time"
)

type Logger struct {
	Level     slog.Level
	Plaintext bool
}

type Client struct {
	BaseURL        string        // базовый адрес бэкенда
	PollPeriod     time.Duration // период опроса статуса
	RequestTimeout time.Duration
}

type Intake struct {
	MaxFiles    int   // глобальный лимит файлов в пакете
	MaxFileSize int64 // лимит размера одного файла в байтах
}

type Server struct {
	Addr      string
	UploadDir string
	TokenTTL  time.Duration // время жизни токена
	MaxTokens int           // максимум одновременно валидных токенов
	MaxFiles  int           // максимум файлов на один запрос
	MaxSize   int64         // максимум байт на один файл
	OCRLangs  []string      // языковые подсказки для движка
}

type Config struct {
	Logger Logger
	Client Client
	Intake Intake
	Server Server
}

func Load() (Config, error) {
	var ge getenv
	cfg := Config{
		Logger: Logger{
			Level:     ge.LogLevel("LOG_LEVEL", false, slog.LevelInfo),
			Plaintext: ge.Bool("LOG_PLAINTEXT", false, false),
		},
		Client: Client{
			BaseURL:        ge.String("OCRUP_BASE_URL", false, "http://localhost:8010/api"),
			PollPeriod:     ge.Duration("OCRUP_POLL_PERIOD", false, 1*time.Second),
			RequestTimeout: ge.Duration("OCRUP_REQUEST_TIMEOUT", false, 1*time.Minute),
		},
		Intake: Intake{
			MaxFiles:    ge.Int("INTAKE_MAX_FILES", false, 20),
			MaxFileSize: ge.Int64("INTAKE_MAX_FILE_SIZE", false, 10<<20),
		},
		Server: Server{
			Addr:      ge.String("SERVER_ADDR", false, ":8010"),
			UploadDir: ge.String("SERVER_UPLOAD_DIR", false, "/tmp/ocrup-uploads"),
			TokenTTL:  ge.Duration("SERVER_TOKEN_TTL", false, 5*time.Minute),
			MaxTokens: ge.Int("SERVER_MAX_TOKENS", false, 20),
			MaxFiles:  ge.Int("SERVER_MAX_FILES", false, 20),
			MaxSize:   ge.Int64("SERVER_MAX_FILE_SIZE", false, 10<<20),
			OCRLangs:  ge.Strings("SERVER_OCR_LANGS", false, []string{"eng"}),
		},
	}
	return cfg, ge.Err()
}
