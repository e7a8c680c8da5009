package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/commenttree"
	"github.com/emilythestrangee/filblog/backend/internal/middleware"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

type CommentHandler struct {
	db *gorm.DB
}

func NewCommentHandler(db *gorm.DB) *CommentHandler {
	return &CommentHandler{db: db}
}

type commentView struct {
	ID              uint           `json:"id"`
	Text            string         `json:"text"`
	UserID          string         `json:"user_id"`
	DateAdded       time.Time      `json:"date_added"`
	ParentCommentID *uint          `json:"parent_comment_id"`
	LikesCount      int64          `json:"likes_count"`
	Liked           bool           `json:"liked"`
	Replies         []*commentView `json:"replies"`
}

func newCommentView(cm models.Comment) *commentView {
	return &commentView{
		ID:              cm.ID,
		Text:            cm.Body,
		UserID:          cm.WalletAddress,
		DateAdded:       cm.CreatedAt,
		ParentCommentID: cm.ParentCommentID,
		Replies:         []*commentView{},
	}
}

func commentID(cm models.Comment) uint { return cm.ID }

func parentID(cm models.Comment) uint {
	if cm.ParentCommentID == nil {
		return 0
	}
	return *cm.ParentCommentID
}

// GetComments returns the threaded comments of a post with like counts.
func (h *CommentHandler) GetComments(c *gin.Context) {
	slug := c.Param("slug")
	wallet, _ := middleware.Wallet(c)

	var comments []models.Comment
	if err := h.db.Where("blog_slug = ?", slug).Order("created_at asc, id asc").Find(&comments).Error; err != nil {
		respondError(c, err)
		return
	}

	var counts []struct {
		CommentID uint
		N         int64
	}
	if err := h.db.Model(&models.Like{}).
		Select("comment_id, COUNT(*) AS n").
		Where("blog_slug = ? AND comment_id <> 0", slug).
		Group("comment_id").
		Scan(&counts).Error; err != nil {
		respondError(c, err)
		return
	}
	likes := make(map[uint]int64, len(counts))
	for _, row := range counts {
		likes[row.CommentID] = row.N
	}

	mine := map[uint]bool{}
	if wallet != "" {
		var ids []uint
		if err := h.db.Model(&models.Like{}).
			Where("blog_slug = ? AND comment_id <> 0 AND wallet_address = ?", slug, wallet).
			Pluck("comment_id", &ids).Error; err != nil {
			respondError(c, err)
			return
		}
		for _, id := range ids {
			mine[id] = true
		}
	}

	roots, err := commenttree.Build(comments, commentID, parentID)
	if err != nil {
		respondError(c, err)
		return
	}

	var toView func(n *commenttree.Node[models.Comment]) *commentView
	toView = func(n *commenttree.Node[models.Comment]) *commentView {
		v := newCommentView(n.Comment)
		v.LikesCount = likes[v.ID]
		v.Liked = mine[v.ID]
		for _, r := range n.Replies {
			v.Replies = append(v.Replies, toView(r))
		}
		return v
	}
	out := make([]*commentView, 0, len(roots))
	for _, r := range roots {
		out = append(out, toView(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateComment adds a comment or a reply to a post.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		badRequest(c, "Comment text is required")
		return
	}
	slug := c.Param("slug")

	if input.ParentCommentID != nil {
		var parents int64
		if err := h.db.Model(&models.Comment{}).Where("id = ? AND blog_slug = ?", *input.ParentCommentID, slug).Count(&parents).Error; err != nil {
			respondError(c, err)
			return
		}
		if parents == 0 {
			badRequest(c, "Parent comment not found on this post")
			return
		}
	}

	comment := models.Comment{
		BlogSlug:        slug,
		WalletAddress:   wallet,
		Body:            text,
		ParentCommentID: input.ParentCommentID,
	}
	if err := h.db.Create(&comment).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCommentView(comment))
}

func (h *CommentHandler) ownComment(c *gin.Context, wallet, verb string) (*models.Comment, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	var comment models.Comment
	if err := h.db.Where("id = ? AND blog_slug = ?", id, c.Param("slug")).First(&comment).Error; err != nil {
		respondError(c, apperr.New(apperr.CodeNotFound, "Comment not found"))
		return nil, false
	}
	if comment.WalletAddress != wallet {
		respondError(c, apperr.New(apperr.CodeForbidden, "You can only "+verb+" your own comments"))
		return nil, false
	}
	return &comment, true
}

// UpdateComment updates a comment (owner only)
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	var input models.UpdateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	comment, ok := h.ownComment(c, wallet, "edit")
	if !ok {
		return
	}

	comment.Body = strings.TrimSpace(input.Text)
	if comment.Body == "" {
		badRequest(c, "Comment text is required")
		return
	}
	if err := h.db.Save(comment).Error; err != nil {
		respondError(c, err)
		return
	}

	var n int64
	h.db.Model(&models.Like{}).Where("blog_slug = ? AND comment_id = ?", comment.BlogSlug, comment.ID).Count(&n)
	v := newCommentView(*comment)
	v.LikesCount = n
	c.JSON(http.StatusOK, v)
}

// DeleteComment deletes a comment, its replies and their likes (owner only)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	comment, ok := h.ownComment(c, wallet, "delete")
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		ids := []uint{comment.ID}
		for frontier := ids; len(frontier) > 0; {
			var next []uint
			if err := tx.Model(&models.Comment{}).Where("parent_comment_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return err
			}
			ids = append(ids, next...)
			frontier = next
		}
		if err := tx.Where("blog_slug = ? AND comment_id IN ?", comment.BlogSlug, ids).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
