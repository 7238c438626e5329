package middleware

import (
	"errors"
	"net/http"
	"strings"

	"cart-service/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey = "user_id" // uuid.UUID

	// API Gatewayが認証後に付けるヘッダ
	HeaderUserID = "X-User-ID"
)

// AuthUser は設定に応じて利用者の識別方法を選ぶ。
// JWT_SECRET があれば Bearer JWT、無ければ X-User-ID ヘッダ。
func AuthUser(cfg config.Config) echo.MiddlewareFunc {
	if cfg.JWTSecret != "" {
		return AuthJWT(cfg.JWTSecret)
	}
	return AuthHeader()
}

// X-User-ID（UUID）をそのまま信頼する。
func AuthHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("X-User-ID header is required"))
			}

			userID, err := uuid.Parse(raw)
			if err != nil || userID == uuid.Nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("X-User-ID header must be a valid UUID"))
			}

			c.Set(CtxUserIDKey, userID)
			return next(c)
		}
	}
}

// bearerAuth用のJWT検証ミドルウェア。subにユーザーのUUIDが入っている前提。
func AuthJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//claimsを取り出す
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//user_idを取り出す
			userID, err := parseUserID(claims["sub"])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)

			return next(c)
		}
	}
}

// UserIDFromContext はAuthUserが入れたユーザーIDを返す。
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(CtxUserIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg, ErrorType: "unauthorized"}
}

// subをUUIDに変換する
func parseUserID(v interface{}) (uuid.UUID, error) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, errors.New("invalid sub")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("invalid sub")
	}
	return id, nil
}
