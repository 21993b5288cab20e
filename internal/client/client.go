// Package client — типизированный клиент четырех операций бэкенда OCR.
// На каждую ручку свой тип ответа, разбор и валидация на границе.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"ocrup/internal/model"
)

type Client struct {
	client  *http.Client
	baseURL string
}

func New(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		client:  httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

type TokenResponse struct {
	Token string `json:"token"`
}

// GetToken запрашивает сессионный токен. Авторизация не требуется.
func (c *Client) GetToken(ctx context.Context) (TokenResponse, error) {
	var resp TokenResponse
	if err := c.getJSON(ctx, "/get-token", &resp); err != nil {
		return TokenResponse{}, err
	}
	if resp.Token == "" {
		return TokenResponse{}, fmt.Errorf("empty token in response")
	}
	return resp, nil
}

type SubmitResponse struct {
	TaskUID string `json:"task_uid"`
}

// Submit отправляет пакет файлов одним multipart POST с Bearer-токеном.
// В тело уходят исходные байты файлов, не превью. Поле files повторяется
// на каждый файл.
func (c *Client) Submit(ctx context.Context, token string, files []model.StagedFile) (SubmitResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeFiles(mw, files))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", pr)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return SubmitResponse{}, err
	}

	var sr SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return SubmitResponse{}, fmt.Errorf("parse response failed: %w", err)
	}
	if sr.TaskUID == "" {
		return SubmitResponse{}, fmt.Errorf("empty task_uid in response")
	}
	return sr, nil
}

func writeFiles(mw *multipart.Writer, files []model.StagedFile) error {
	for _, file := range files {
		part, err := mw.CreateFormFile("files", file.Name)
		if err != nil {
			return fmt.Errorf("create form file failed: %w", err)
		}

		f, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("open %q failed: %w", file.Path, err)
		}

		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("copy %q failed: %w", file.Name, err)
		}
	}
	return mw.Close()
}

type StatusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Messages string  `json:"messages,omitempty"`
}

// Status опрашивает состояние задачи. Токен не переотправляется.
func (c *Client) Status(ctx context.Context, taskUID string) (StatusResponse, error) {
	var resp StatusResponse
	if err := c.getJSON(ctx, "/get-status/"+taskUID, &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}

type resultsResponse struct {
	Results map[string][]string `json:"results"`
}

// Results забирает итоговое отображение имя -> извлеченный текст.
// Проводной формат — имя в паре [имя, текст]; пары неверной длины
// отвергаются на границе.
func (c *Client) Results(ctx context.Context, taskUID string) (model.ResultSet, error) {
	var resp resultsResponse
	if err := c.getJSON(ctx, "/get-results/"+taskUID, &resp); err != nil {
		return nil, err
	}

	results := make(model.ResultSet, len(resp.Results))
	for name, pair := range resp.Results {
		if len(pair) != 2 {
			return nil, fmt.Errorf("malformed result entry %q: want [name, text] pair, got %d elements", name, len(pair))
		}
		if pair[0] != name {
			slog.Debug("result entry name mismatch", "key", name, "name", pair[0])
		}
		results[name] = pair[1]
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response failed: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", model.ErrTaskNotFound, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", model.ErrInvalidToken, msg)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}
