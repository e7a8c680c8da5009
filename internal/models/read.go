package models

import "time"

type BlogRead struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	WalletAddress    string    `gorm:"size:42;index;not null" json:"wallet_address"`
	BlogSlug         string    `gorm:"size:200;index;not null" json:"blog_slug"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	ScrollPercentage float64   `json:"scroll_percentage"`
	DeviceInfo       string    `gorm:"size:200" json:"device_info"`
	Qualified        bool      `gorm:"index" json:"qualified"`
	TxHash           string    `gorm:"size:66" json:"tx_hash,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type RecordReadRequest struct {
	BlogSlug         string  `json:"blog_slug" binding:"required"`
	ContentWords     int     `json:"content_words" binding:"gte=0"`
	TimeSpentSeconds int     `json:"time_spent_seconds" binding:"gte=0"`
	MaxScrollPercent float64 `json:"max_scroll_percentage" binding:"gte=0,lte=100"`
	DeviceInfo       string  `json:"device_info" binding:"max=200"`
	PostID           uint64  `json:"post_id"`
}
