package models

import "time"

// User is the off-chain profile of a wallet.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	WalletAddress  string    `gorm:"size:42;uniqueIndex;not null" json:"wallet_address"`
	Username       string    `gorm:"size:50" json:"username"`
	UsernameKey    *string   `gorm:"size:50;uniqueIndex" json:"-"` // lowercased Username
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuthNonce is a pending wallet sign-in challenge.
type AuthNonce struct {
	WalletAddress string    `gorm:"primaryKey;size:42"`
	Nonce         string    `gorm:"size:32;not null"`
	ExpiresAt     time.Time `gorm:"index"`
	CreatedAt     time.Time
}

type NonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type VerifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}
