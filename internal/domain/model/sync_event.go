package model

import "time"

// カタログ通知の種類
type SyncEventKind string

const (
	//商品の名前・価格・画像が更新された
	SyncEventProductUpdated SyncEventKind = "product_updated"
	//在庫切れ
	SyncEventOutOfStock SyncEventKind = "out_of_stock"
	//在庫復活
	SyncEventBackInStock SyncEventKind = "back_in_stock"
	//カタログから削除された
	SyncEventProductDeleted SyncEventKind = "product_deleted"
)

func (k SyncEventKind) Valid() bool {
	switch k {
	case SyncEventProductUpdated, SyncEventOutOfStock, SyncEventBackInStock, SyncEventProductDeleted:
		return true
	}
	return false
}

// 通知がどこから届いたか
type SyncEventSource string

const (
	SyncSourceWebhook SyncEventSource = "webhook"
	SyncSourceKafka   SyncEventSource = "kafka"
)

// 適用したカタログ通知の記録。
// 一括更新と同じトランザクションで1件保存する。
type SyncEvent struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ProductID int64           `gorm:"not null;index:ix_sync_events_product,priority:1" json:"product_id"`
	Kind      SyncEventKind   `gorm:"type:varchar(32);not null" json:"kind"`
	Source    SyncEventSource `gorm:"type:varchar(16);not null" json:"source"`

	//通知に付いていたバージョン（無ければ0）
	Version int64 `gorm:"not null;default:0" json:"version"`

	//受け取った内容をJSON文字列で保存する。
	PayloadJSON string `gorm:"type:text" json:"payload_json"`

	//更新された明細の数
	AffectedRows int64 `gorm:"not null" json:"affected_rows"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
