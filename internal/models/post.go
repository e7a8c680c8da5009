package models

import "time"

// PostAuthor is the wallet that published an on-chain post through the API.
// Post edits are authorized against it.
type PostAuthor struct {
	PostID        uint64    `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	WalletAddress string    `gorm:"size:42;index;not null" json:"wallet_address"`
	ContentCID    string    `gorm:"size:100" json:"content_cid"`
	CreatedAt     time.Time `json:"created_at"`
}
