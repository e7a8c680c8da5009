package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/chain"
	"github.com/emilythestrangee/filblog/backend/internal/commenttree"
)

const (
	maxBatchIDs      = 50
	maxParentLookups = 5
)

type ChainHandler struct {
	db       *gorm.DB
	contract BlogContract
	store    ContentStore
	policy   UploadPolicy
}

func NewChainHandler(db *gorm.DB, contract BlogContract, store ContentStore, policy UploadPolicy) *ChainHandler {
	return &ChainHandler{db: db, contract: contract, store: store, policy: policy}
}

// idList parses "1,2,3" from the ids query parameter.
func idList(c *gin.Context) ([]uint64, bool) {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		badRequest(c, "ids is required")
		return nil, false
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxBatchIDs {
		badRequest(c, "at most 50 ids per request")
		return nil, false
	}
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || n == 0 {
			badRequest(c, "ids must be positive integers")
			return nil, false
		}
		ids = append(ids, n)
	}
	return ids, true
}

func (h *ChainHandler) GetUser(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	user, err := h.contract.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.Exists {
		respondError(c, apperr.New(apperr.CodeNotFound, "User not found"))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *ChainHandler) GetUserRewards(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	rewards, err := h.contract.GetUserRewards(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	var total uint64
	for _, r := range rewards {
		total += r.PointsEarned
	}
	if rewards == nil {
		rewards = []chain.Reward{}
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "total_points": total})
}

func (h *ChainHandler) GetComment(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	comment, err := h.contract.GetComment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !comment.Exists {
		respondError(c, apperr.New(apperr.CodeNotFound, "Comment not found"))
		return
	}
	c.JSON(http.StatusOK, comment)
}

func chainCommentID(cm *chain.Comment) uint64     { return cm.ID }
func chainCommentParent(cm *chain.Comment) uint64 { return cm.ParentCommentID }

// GetPostComments loads the listed comments of a post, plus any missing
// ancestors, and returns them as a reply forest.
func (h *ChainHandler) GetPostComments(c *gin.Context) {
	postID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ids, ok := idList(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	byID := map[uint64]*chain.Comment{}
	var ordered []*chain.Comment
	for round := 0; len(ids) > 0 && round <= maxParentLookups; round++ {
		fetched, err := h.contract.GetComments(ctx, ids)
		if err != nil {
			respondError(c, err)
			return
		}
		ids = ids[:0:0]
		for _, cm := range fetched {
			if !cm.Exists || cm.PostID != postID {
				continue
			}
			if _, dup := byID[cm.ID]; dup {
				continue
			}
			byID[cm.ID] = cm
			ordered = append(ordered, cm)
		}
		for _, cm := range fetched {
			if p := cm.ParentCommentID; cm.Exists && cm.PostID == postID && p != 0 {
				if _, seen := byID[p]; !seen && !containsID(ids, p) {
					ids = append(ids, p)
				}
			}
		}
	}

	roots, err := commenttree.Build(ordered, chainCommentID, chainCommentParent)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.CodeGetCommentFailed, "Comment thread is incomplete", err))
		return
	}
	c.JSON(http.StatusOK, roots)
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (h *ChainHandler) UserIDByAddress(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		badRequest(c, "invalid wallet address")
		return
	}
	id, err := h.contract.UserIDByAddress(c.Request.Context(), common.HexToAddress(raw))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": raw, "user_id": id, "registered": id != 0})
}

func (h *ChainHandler) RewardPoints(c *gin.Context) {
	points, err := h.contract.RewardPoints(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *ChainHandler) RegisterUser(c *gin.Context) {
	if _, ok := extractWallet(c); !ok {
		return
	}
	var input struct {
		Username          string `json:"username" binding:"required,max=50"`
		Email             string `json:"email" binding:"omitempty,email"`
		Bio               string `json:"bio" binding:"max=500"`
		ProfilePictureURL string `json:"profile_picture_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	rcpt, err := h.contract.RegisterUser(c.Request.Context(), input.Username, input.Email, input.Bio, input.ProfilePictureURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rcpt)
}

func (h *ChainHandler) AddComment(c *gin.Context) {
	if _, ok := extractWallet(c); !ok {
		return
	}
	postID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Text            string `json:"text" binding:"required,max=5000"`
		ParentCommentID uint64 `json:"parent_comment_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	rcpt, err := h.contract.AddComment(c.Request.Context(), postID, input.Text, input.ParentCommentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rcpt)
}

func (h *ChainHandler) LikeComment(c *gin.Context) {
	if _, ok := extractWallet(c); !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	rcpt, err := h.contract.LikeComment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rcpt)
}
