// Package server — dev-бэкенд OCR: выдача сессионных токенов, прием
// multipart-пакета изображений, фоновое распознавание с прогрессом и
// выдача результатов. Поведение воспроизводит продакшен-бэкенд, чтобы
// клиент можно было гонять end-to-end локально.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"ocrup/internal/config"
	"ocrup/internal/logger"
	"ocrup/internal/model"
)

// Текст-заглушка для файла, на котором OCR упал: джоба не валится,
// провал виден в результатах.
const failedPlaceholder = "(Failed. Please reduce the image size.)"

type Server struct {
	cfg    config.Server
	tokens *TokenBuffer
	store  *JobStore
	engine Engine

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg config.Server, engine Engine) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		tokens: NewTokenBuffer(cfg.MaxTokens, cfg.TokenTTL),
		store:  NewJobStore(),
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Close останавливает фоновые джобы и стор.
func (s *Server) Close() {
	s.cancel()
	s.store.Cancel()
}

// Register вешает ручки бэкенда на echo под базовым путем.
func (s *Server) Register(e *echo.Echo, basePath string) {
	g := e.Group(basePath)
	g.GET("/get-token", s.handleGetToken)
	g.POST("/ocr", s.handleOCR)
	g.GET("/get-status/:uid", s.handleGetStatus)
	g.GET("/get-results/:uid", s.handleGetResults)
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleGetToken(c echo.Context) error {
	return c.JSON(http.StatusOK, tokenResponse{Token: s.tokens.Issue()})
}

type submitResponse struct {
	TaskUID string `json:"task_uid"`
}

func (s *Server) handleOCR(c echo.Context) error {
	log := logger.FromContext(c.Request().Context()).With("op", "handleOCR")

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	token := strings.TrimPrefix(auth, "Bearer ")
	if err := s.tokens.Verify(token); err != nil {
		log.Debug("auth rejected", "error", err)
		return mapError(err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "can't parse multipart form")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "files is required")
	}
	if len(headers) > s.cfg.MaxFiles {
		return mapError(model.ErrMaxFilesExceeded)
	}

	uploads, err := s.saveUploads(headers)
	if err != nil {
		log.Debug("save uploads failed", "error", err)
		return mapError(err)
	}

	job, err := s.store.Create()
	if err != nil {
		removeUploads(uploads)
		return mapError(err)
	}

	go s.runJob(job.UID, uploads)

	log.Info("job accepted", "taskUID", job.UID, "files", len(uploads))
	return c.JSON(http.StatusAccepted, submitResponse{TaskUID: job.UID})
}

type statusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Messages string  `json:"messages"`
}

func (s *Server) handleGetStatus(c echo.Context) error {
	uid, err := parseUID(c)
	if err != nil {
		return err
	}

	job, err := s.store.Get(uid)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, statusResponse{
		Status:   job.Status,
		Progress: job.Progress,
		Messages: job.Messages,
	})
}

type resultsResponse struct {
	Results map[string][]string `json:"results"`
}

func (s *Server) handleGetResults(c echo.Context) error {
	uid, err := parseUID(c)
	if err != nil {
		return err
	}

	// Результаты выдаются один раз, джоба удаляется
	job, err := s.store.Take(uid)
	if err != nil {
		return mapError(err)
	}

	results := make(map[string][]string, len(job.Results))
	for _, p := range job.Results {
		results[p.Name] = []string{p.Name, p.Text}
	}
	return c.JSON(http.StatusOK, resultsResponse{Results: results})
}

type upload struct {
	Name string // имя, заявленное клиентом (ключ результата)
	Path string // путь сохраненной копии
}

func (s *Server) saveUploads(headers []*multipart.FileHeader) ([]upload, error) {
	uploads := make([]upload, 0, len(headers))

	for _, fh := range headers {
		if fh.Size > s.cfg.MaxSize {
			removeUploads(uploads)
			return nil, fmt.Errorf("%w: %s", model.ErrFileTooLarge, fh.Filename)
		}

		path, err := s.saveUpload(fh)
		if err != nil {
			removeUploads(uploads)
			return nil, err
		}
		uploads = append(uploads, upload{Name: fh.Filename, Path: path})
	}

	return uploads, nil
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q failed: %w", fh.Filename, err)
	}
	defer src.Close()

	path := filepath.Join(s.cfg.UploadDir, storedFileName(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %q failed: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write %q failed: %w", path, err)
	}
	return path, nil
}

func removeUploads(uploads []upload) {
	for _, u := range uploads {
		os.Remove(u.Path)
	}
}

// runJob гонит OCR файл за файлом: прогресс растет на 1/N за файл,
// провал одного файла не валит джобу. По завершении загруженные копии
// удаляются.
func (s *Server) runJob(uid string, uploads []upload) {
	log := slog.With("op", "runJob", "taskUID", uid)
	step := 1.0 / float64(len(uploads))

	for _, u := range uploads {
		s.store.Update(uid, func(j *Job) {
			j.Messages = "Processing " + u.Name + "."
		})

		text, err := s.engine.Recognize(s.ctx, u.Path)
		if err != nil {
			log.Warn("ocr failed", "name", u.Name, "error", err)
			text = failedPlaceholder
		}

		s.store.Update(uid, func(j *Job) {
			j.Progress += step
			j.Results = append(j.Results, ResultPair{Name: u.Name, Text: text})
		})
	}

	s.store.Update(uid, func(j *Job) {
		j.Progress = 1.0
		j.Messages = "Completed."
		j.Status = model.StatusCompleted
	})
	log.Info("job completed", "files", len(uploads))

	removeUploads(uploads)
}

func parseUID(c echo.Context) (string, error) {
	uid := c.Param("uid")
	if _, err := uuid.Parse(uid); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid task uid")
	}
	return uid, nil
}

func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrMaxFilesExceeded):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, model.ErrServerCancelled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	slog.Warn("unhandled error has been detected", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
