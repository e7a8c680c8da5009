package models

import "time"

type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BlogSlug        string    `gorm:"size:200;index;not null" json:"blog_slug"`
	WalletAddress   string    `gorm:"size:42;index;not null" json:"wallet_address"`
	Body            string    `gorm:"not null" json:"text"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	Text            string `json:"text" binding:"required,max=5000"`
	ParentCommentID *uint  `json:"parent_comment_id,omitempty"`
}

type UpdateCommentRequest struct {
	Text string `json:"text" binding:"required,max=5000"`
}
