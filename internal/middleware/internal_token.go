package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const HeaderInternalToken = "X-Internal-Token"

// 内部API（通知・注文サービス向け）の共有トークン確認。
// tokenが空なら確認しない（ネットワークで守られている前提）。
func InternalToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}

			got := c.Request().Header.Get(HeaderInternalToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return c.JSON(http.StatusUnauthorized, errorJSON("invalid internal token"))
			}
			return next(c)
		}
	}
}
