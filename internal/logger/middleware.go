package logger

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// HTTPLogging создает echo-middleware для логирования запросов.
// Каждому запросу присваивается reqID, логгер с ним кладется в контекст
// запроса, паники обработчиков перехватываются.
func HTTPLogging(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			r := c.Request()

			log := log.With("reqID", rand.Uint64(), "from", r.RemoteAddr, "method", r.Method, "url", r.URL.String())
			log.Debug("request received")

			// Добавляем логгер в контекст запроса
			c.SetRequest(r.WithContext(Context(r.Context(), log)))

			// Отлавливаем паники в обработчике
			defer func() {
				if p := recover(); p != nil {
					log.Error("*** panic recovered ***",
						"panic", p,
						"stack", debug.Stack())
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
			}()

			if err := next(c); err != nil {
				return err
			}

			log.Debug("response status", "status", c.Response().Status)
			return nil
		}
	}
}
