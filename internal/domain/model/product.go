package model

// カタログ（商品サービス）から取得した商品の現在値。
// カートに保存はせず、新しい明細のスナップショット元として使う。
type CatalogProduct struct {
	ID    int64
	Name  string
	Price int64
	Image *string

	// カタログ側の改訂番号（返さない実装では0）
	Version int64
}

// 新しい明細に凍結するスナップショット
func (p CatalogProduct) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ProductName:  p.Name,
		ProductPrice: p.Price,
		ProductImage: p.Image,
	}
}
