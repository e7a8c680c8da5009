package models

import "time"

// Like is one wallet's like on a post, or on a comment when CommentID is non-zero.
type Like struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BlogSlug      string    `gorm:"size:200;not null;uniqueIndex:idx_like_target" json:"blog_slug"`
	CommentID     uint      `gorm:"not null;default:0;uniqueIndex:idx_like_target" json:"comment_id"`
	WalletAddress string    `gorm:"size:42;not null;uniqueIndex:idx_like_target" json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}
