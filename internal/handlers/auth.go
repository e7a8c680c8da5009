package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/auth"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

type AuthHandler struct {
	db     *gorm.DB
	issuer *auth.Issuer
	now    func() time.Time
}

func NewAuthHandler(db *gorm.DB, issuer *auth.Issuer) *AuthHandler {
	return &AuthHandler{db: db, issuer: issuer, now: time.Now}
}

// Nonce issues a sign-in challenge for a wallet.
func (h *AuthHandler) Nonce(c *gin.Context) {
	var input models.NonceRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	address, err := auth.NormalizeAddress(input.Address)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	nonce, err := auth.NewNonce()
	if err != nil {
		respondError(c, err)
		return
	}
	row := models.AuthNonce{
		WalletAddress: address,
		Nonce:         nonce,
		ExpiresAt:     h.now().Add(auth.NonceTTL).UTC(),
	}
	err = h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      nonce,
		"message":    auth.SignInMessage(address, nonce),
		"expires_at": row.ExpiresAt,
	})
}

// Verify exchanges a signed challenge for a session token.
func (h *AuthHandler) Verify(c *gin.Context) {
	var input models.VerifyRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	address, err := auth.NormalizeAddress(input.Address)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var pending models.AuthNonce
	err = h.db.Where("wallet_address = ?", address).First(&pending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && h.now().After(pending.ExpiresAt)) {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "Nonce expired or missing, request a new one"))
		return
	} else if err != nil {
		respondError(c, err)
		return
	}

	if err := auth.VerifySignature(address, auth.SignInMessage(address, pending.Nonce), input.Signature); err != nil {
		respondError(c, apperr.Wrap(apperr.CodeUnauthorized, "Invalid signature", err))
		return
	}

	// Only one verify may consume a nonce.
	res := h.db.Where("wallet_address = ? AND nonce = ?", address, pending.Nonce).Delete(&models.AuthNonce{})
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "Nonce already used"))
		return
	}

	var user models.User
	if err := h.db.Where(models.User{WalletAddress: address}).FirstOrCreate(&user).Error; err != nil {
		respondError(c, err)
		return
	}

	token, exp, err := h.issuer.Issue(address)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("🔑 Wallet signed in: %s", address)
	c.JSON(http.StatusOK, models.AuthResponse{Token: token, ExpiresAt: exp, User: user})
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
		respondError(c, apperr.New(apperr.CodeNotFound, "User not found"))
		return
	}
	c.JSON(http.StatusOK, user)
}
