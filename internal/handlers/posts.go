package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/chain"
	"github.com/emilythestrangee/filblog/backend/internal/models"
	"github.com/emilythestrangee/filblog/backend/internal/storage"
)

type postRequest struct {
	Title              string   `json:"title" binding:"required,max=300"`
	Content            string   `json:"content"`
	ContentCID         string   `json:"content_cid"`
	Tags               []string `json:"tags" binding:"max=10"`
	Visibility         string   `json:"visibility"`
	ImageCID           string   `json:"image_cid"`
	LighthouseMetadata string   `json:"lighthouse_metadata"`
}

// postInput validates req and uploads inline content so that the
// contract only ever sees content identifiers.
func (h *ChainHandler) postInput(c *gin.Context, req postRequest) (chain.PostInput, error) {
	vis, ok := chain.ParseVisibility(strings.ToLower(req.Visibility))
	if !ok {
		return chain.PostInput{}, apperr.New(apperr.CodeInvalidInput, "visibility must be public, private or draft")
	}
	if (req.Content == "") == (req.ContentCID == "") {
		return chain.PostInput{}, apperr.New(apperr.CodeInvalidInput, "exactly one of content or content_cid is required")
	}
	if req.ImageCID != "" {
		if err := storage.ValidateCID(req.ImageCID); err != nil {
			return chain.PostInput{}, err
		}
	}

	contentCID := req.ContentCID
	if contentCID != "" {
		if err := storage.ValidateCID(contentCID); err != nil {
			return chain.PostInput{}, err
		}
	} else {
		res, err := h.store.UploadWithRetry(c.Request.Context(), "post.html", []byte(req.Content), h.policy.MaxRetries, h.policy.RetryDelay)
		if err != nil {
			return chain.PostInput{}, err
		}
		contentCID = res.Hash
	}

	tags := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return chain.PostInput{
		Title:              strings.TrimSpace(req.Title),
		ContentCID:         contentCID,
		Tags:               tags,
		Visibility:         vis,
		ImageCID:           req.ImageCID,
		LighthouseMetadata: req.LighthouseMetadata,
	}, nil
}

func (h *ChainHandler) GetPost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	post, err := h.contract.GetPost(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !post.Exists {
		respondError(c, apperr.New(apperr.CodeNotFound, "Post not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post":        post,
		"content_url": h.store.GatewayURL(post.ContentCID),
		"visibility":  post.Visibility.String(),
	})
}

// ListPosts returns the existing posts among ids, in the requested order.
func (h *ChainHandler) ListPosts(c *gin.Context) {
	ids, ok := idList(c)
	if !ok {
		return
	}
	posts, err := h.contract.GetPosts(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]*chain.Post, 0, len(posts))
	for _, p := range posts {
		if p.Exists {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *ChainHandler) GetReadSessions(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	sessions, err := h.contract.GetReadSessions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []chain.ReadSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// CreatePost uploads the post body to IPFS and publishes it on-chain.
func (h *ChainHandler) CreatePost(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := h.postInput(c, req)
	if err != nil {
		respondError(c, err)
		return
	}
	rcpt, err := h.contract.CreatePost(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	author := models.PostAuthor{PostID: rcpt.Events.PostID, WalletAddress: wallet, ContentCID: in.ContentCID}
	if author.PostID == 0 {
		log.Printf("⚠️ post by %s in tx %s emitted no PostCreated event; author not recorded", wallet, rcpt.TxHash.Hex())
	} else if err := h.db.Create(&author).Error; err != nil {
		log.Printf("⚠️ post %d by %s published but author not recorded: %v", author.PostID, wallet, err)
	}
	c.JSON(http.StatusCreated, gin.H{
		"post_id":     rcpt.Events.PostID,
		"content_cid": in.ContentCID,
		"receipt":     rcpt,
	})
}

func (h *ChainHandler) UpdatePost(c *gin.Context) {
	id, ok := h.ownPost(c, "edit")
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := h.postInput(c, req)
	if err != nil {
		respondError(c, err)
		return
	}
	rcpt, err := h.contract.UpdatePost(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content_cid": in.ContentCID, "receipt": rcpt})
}

func (h *ChainHandler) DeletePost(c *gin.Context) {
	id, ok := h.ownPost(c, "delete")
	if !ok {
		return
	}
	rcpt, err := h.contract.DeletePost(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Post %d deleted", id), "receipt": rcpt})
}

func (h *ChainHandler) LikePost(c *gin.Context) {
	if _, ok := extractWallet(c); !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	rcpt, err := h.contract.LikePost(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rcpt)
}

func (h *ChainHandler) UpdateMetadata(c *gin.Context) {
	id, ok := h.ownPost(c, "update")
	if !ok {
		return
	}
	var input struct {
		Metadata string `json:"metadata" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	rcpt, err := h.contract.UpdateLighthouseMetadata(c.Request.Context(), id, input.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rcpt)
}

// ownPost answers 403 unless the caller published post :id through this API.
func (h *ChainHandler) ownPost(c *gin.Context, verb string) (uint64, bool) {
	wallet, ok := extractWallet(c)
	if !ok {
		return 0, false
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return 0, false
	}
	var author models.PostAuthor
	err := h.db.Where("post_id = ?", id).First(&author).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err)
		return 0, false
	}
	if err != nil || author.WalletAddress != wallet {
		respondError(c, apperr.New(apperr.CodeForbidden, "You can only "+verb+" your own posts"))
		return 0, false
	}
	return id, true
}
