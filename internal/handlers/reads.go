package handlers

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/auth"
	"github.com/emilythestrangee/filblog/backend/internal/database"
	"github.com/emilythestrangee/filblog/backend/internal/engagement"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

const (
	defaultTopBlogs = 10
	maxTopBlogs     = 100
)

type ReadHandler struct {
	db       *gorm.DB
	stats    *database.ReadStats
	contract BlogContract
}

func NewReadHandler(db *gorm.DB, stats *database.ReadStats, contract BlogContract) *ReadHandler {
	return &ReadHandler{db: db, stats: stats, contract: contract}
}

// RecordRead stores a reading session and, when it qualifies, records it on-chain.
func (h *ReadHandler) RecordRead(c *gin.Context) {
	wallet, ok := extractWallet(c)
	if !ok {
		return
	}
	var input models.RecordReadRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	session := engagement.Session{MaxScrollPct: input.MaxScrollPercent, ActiveSeconds: input.TimeSpentSeconds}
	read := models.BlogRead{
		WalletAddress:    wallet,
		BlogSlug:         input.BlogSlug,
		TimeSpentSeconds: input.TimeSpentSeconds,
		ScrollPercentage: input.MaxScrollPercent,
		DeviceInfo:       input.DeviceInfo,
		Qualified:        engagement.Qualifies(session, input.ContentWords),
	}
	if err := h.db.Create(&read).Error; err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"read":      read,
		"qualified": read.Qualified,
		"too_fast":  engagement.TooFast(session, input.ContentWords),
		"on_chain":  false,
	}
	if read.Qualified && input.PostID > 0 && h.contract != nil {
		rcpt, err := h.contract.RecordReadSession(c.Request.Context(), input.PostID,
			uint64(read.TimeSpentSeconds), uint64(math.Round(read.ScrollPercentage)), read.DeviceInfo)
		if err != nil {
			log.Printf("⚠️ read of %s by %s stored but not recorded on-chain: %v", read.BlogSlug, wallet, err)
			resp["chain_error"] = gin.H{"error": err.Error(), "code": apperr.CodeOf(err)}
		} else {
			read.TxHash = rcpt.TxHash.Hex()
			if err := h.db.Model(&read).Update("tx_hash", read.TxHash).Error; err != nil {
				respondError(c, err)
				return
			}
			resp["read"] = read
			resp["on_chain"] = true
			resp["receipt"] = rcpt
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// GetReaderStats returns the read counts of a wallet.
func (h *ReadHandler) GetReaderStats(c *gin.Context) {
	address, err := auth.NormalizeAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	total, err := h.stats.TotalReads(ctx, address)
	if err != nil {
		respondError(c, err)
		return
	}
	qualified, err := h.stats.QualifiedReads(ctx, address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet_address":  address,
		"total_reads":     total,
		"qualified_reads": qualified,
	})
}

// TopBlogs lists the most read posts.
func (h *ReadHandler) TopBlogs(c *gin.Context) {
	limit := uint64(defaultTopBlogs)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTopBlogs)
	}
	top, err := h.stats.TopBlogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}

// BlogStats returns the read counts of one post.
func (h *ReadHandler) BlogStats(c *gin.Context) {
	counts, err := h.stats.ReadsByBlog(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
