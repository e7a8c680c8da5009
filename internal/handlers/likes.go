package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/middleware"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

type LikeHandler struct {
	db *gorm.DB
}

func NewLikeHandler(db *gorm.DB) *LikeHandler {
	return &LikeHandler{db: db}
}

type likeState struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

func (h *LikeHandler) state(slug string, commentID uint, wallet string) (likeState, error) {
	var st likeState
	err := h.db.Model(&models.Like{}).
		Where("blog_slug = ? AND comment_id = ?", slug, commentID).
		Count(&st.LikesCount).Error
	if err != nil || wallet == "" {
		return st, err
	}
	var mine int64
	err = h.db.Model(&models.Like{}).
		Where("blog_slug = ? AND comment_id = ? AND wallet_address = ?", slug, commentID, wallet).
		Count(&mine).Error
	st.Liked = mine > 0
	return st, err
}

// toggle removes the wallet's like if present, otherwise adds it.
func (h *LikeHandler) toggle(slug string, commentID uint, wallet string) (likeState, error) {
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Like
		err := tx.Where("blog_slug = ? AND comment_id = ? AND wallet_address = ?", slug, commentID, wallet).
			First(&existing).Error
		if err == nil {
			return tx.Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&models.Like{BlogSlug: slug, CommentID: commentID, WalletAddress: wallet}).Error
	})
	if err != nil {
		return likeState{}, err
	}
	return h.state(slug, commentID, wallet)
}

// GetBlogLike returns the like count of a post and whether the caller liked it.
func (h *LikeHandler) GetBlogLike(c *gin.Context) {
	wallet, _ := middleware.Wallet(c)
	st, err := h.state(c.Param("slug"), 0, wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ToggleBlogLike likes or unlikes a post.
func (h *LikeHandler) ToggleBlogLike(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	st, err := h.toggle(c.Param("slug"), 0, wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ToggleCommentLike likes or unlikes a comment on the post.
func (h *LikeHandler) ToggleCommentLike(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	slug := c.Param("slug")

	var comment models.Comment
	if err := h.db.Where("id = ? AND blog_slug = ?", id, slug).First(&comment).Error; err != nil {
		respondError(c, apperr.New(apperr.CodeNotFound, "Comment not found"))
		return
	}

	st, err := h.toggle(slug, comment.ID, wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
