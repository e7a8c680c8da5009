package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/auth"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

const maxPictureBytes = 5 << 20

type ProfileHandler struct {
	db     *gorm.DB
	store  ContentStore
	policy UploadPolicy
}

func NewProfileHandler(db *gorm.DB, store ContentStore, policy UploadPolicy) *ProfileHandler {
	return &ProfileHandler{db: db, store: store, policy: policy}
}

// GetProfile looks a profile up by wallet address.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	raw := c.Query("address")
	if raw == "" {
		badRequest(c, "Address is required")
		return
	}
	address, err := auth.NormalizeAddress(raw)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var user models.User
	err = h.db.Where("wallet_address = ?", address).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apperr.New(apperr.CodeNotFound, "Profile not found"))
		return
	} else if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":        user.Username,
		"profile_picture": user.ProfilePicture,
	})
}

// UpdateProfile changes the username and, if a picture is sent, stores it on IPFS.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}

	var input struct {
		Username string `form:"username" binding:"max=50"`
	}
	if err := c.ShouldBind(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	var user models.User
	if err := h.db.Where(models.User{WalletAddress: wallet}).FirstOrCreate(&user).Error; err != nil {
		respondError(c, err)
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Username); name != "" {
		updates["username"] = name
		updates["username_key"] = strings.ToLower(name)
	}

	picture, err := h.uploadPicture(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if picture != "" {
		updates["profile_picture"] = picture
	}

	if len(updates) == 0 {
		badRequest(c, "Nothing to update")
		return
	}
	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = apperr.New(apperr.CodeConflict, "Username already taken")
		}
		respondError(c, err)
		return
	}
	h.db.First(&user, user.ID)

	log.Printf("👤 Profile updated: %s", wallet)
	c.JSON(http.StatusOK, user)
}

// uploadPicture stores the optional "picture" form file and returns its
// gateway URL, or "" when none was sent.
func (h *ProfileHandler) uploadPicture(c *gin.Context) (string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return "", nil
	}
	fh, err := c.FormFile("picture")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	} else if err != nil {
		return "", apperr.Wrap(apperr.CodeInvalidInput, err.Error(), err)
	}
	if fh.Size > maxPictureBytes {
		return "", apperr.New(apperr.CodeInvalidInput, "Profile picture must be 5MB or smaller")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	res, err := h.store.UploadWithRetry(c.Request.Context(), fh.Filename, data, h.policy.MaxRetries, h.policy.RetryDelay)
	if err != nil {
		return "", err
	}
	return h.store.GatewayURL(res.Hash), nil
}
