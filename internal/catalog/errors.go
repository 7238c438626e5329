package catalog

import (
	"errors"
	"fmt"
)

// 商品サービスが404を返した
var ErrProductNotFound = errors.New("product not found in catalog")

// 商品サービスに届かない、またはエラー応答。
// StatusCode は応答があった場合だけ入る（接続失敗・タイムアウトは0）。
type UnavailableError struct {
	ProductID  int64
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("catalog unavailable: product %d: status %d: %v", e.ProductID, e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog unavailable: product %d: status %d", e.ProductID, e.StatusCode)
	}
	return fmt.Sprintf("catalog unavailable: product %d: %v", e.ProductID, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable は err が UnavailableError かどうか
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
