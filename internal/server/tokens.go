package server

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"ocrup/internal/model"
)

// TokenBuffer — FIFO-буфер валидных сессионных токенов. Число
// одновременно валидных токенов ограничено: выдача сверх лимита
// вытесняет самый старый (ротация), истекшие отвергаются при проверке.
type TokenBuffer struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	entries []tokenEntry
}

type tokenEntry struct {
	token   string
	expires time.Time
}

func NewTokenBuffer(max int, ttl time.Duration) *TokenBuffer {
	return &TokenBuffer{max: max, ttl: ttl}
}

// Issue генерирует новый токен и кладет его в буфер.
func (b *TokenBuffer) Issue() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	token := base64.RawURLEncoding.EncodeToString(buf)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, tokenEntry{
		token:   token,
		expires: time.Now().Add(b.ttl),
	})
	if len(b.entries) > b.max {
		b.entries = b.entries[1:]
	}

	return token
}

// Verify проверяет, что токен есть в буфере и не истек.
func (b *TokenBuffer) Verify(token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.entries {
		if e.token != token {
			continue
		}
		if time.Now().After(e.expires) {
			return model.ErrTokenExpired
		}
		return nil
	}
	return model.ErrInvalidToken
}
