package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"cart-service/internal/usecase"

	"github.com/labstack/echo/v4"
)

const internalErrorMessage = "Internal server error. Please report this ID to support."

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, ErrorType: "bad_request"})
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, ErrorType: he.Type})
	}

	//500はHTTPErrorHandlerでログとrequest_idを付ける
	return err
}

// NewHTTPErrorHandler はechoの共通エラーハンドラ。
// 想定外のエラーは中身を返さず、request_idだけを返す。
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		//echo側のエラー（404 route, 405, bind失敗など）
		var ee *echo.HTTPError
		if errors.As(err, &ee) && ee.Code < http.StatusInternalServerError {
			msg := http.StatusText(ee.Code)
			if s, ok := ee.Message.(string); ok && s != "" {
				msg = s
			}
			_ = c.JSON(ee.Code, ErrorResponse{Error: msg, ErrorType: errorType(ee.Code)})
			return
		}

		if he, ok := usecase.AsHTTPError(err); ok {
			_ = c.JSON(he.Status, ErrorResponse{Error: he.Message, ErrorType: he.Type})
			return
		}

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		logger.ErrorContext(c.Request().Context(), "unhandled_error",
			"error", err.Error(),
			"request_id", requestID,
			"method", c.Request().Method,
			"path", c.Path(),
		)

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(http.StatusInternalServerError)
			return
		}
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     internalErrorMessage,
			RequestID: requestID,
		})
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	default:
		return "error"
	}
}
