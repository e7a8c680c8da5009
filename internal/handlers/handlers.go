package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/auth"
	"github.com/emilythestrangee/filblog/backend/internal/chain"
	"github.com/emilythestrangee/filblog/backend/internal/database"
	"github.com/emilythestrangee/filblog/backend/internal/middleware"
	"github.com/emilythestrangee/filblog/backend/internal/storage"
)

// ContentStore is the IPFS side of the API.
type ContentStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (*storage.UploadResult, error)
	UploadWithRetry(ctx context.Context, name string, data []byte, maxRetries int, baseDelay time.Duration) (*storage.UploadResult, error)
	Fetch(ctx context.Context, contentID string) ([]byte, error)
	GatewayURL(contentID string) string
}

// BlogContract is the on-chain side of the API.
type BlogContract interface {
	GetUser(ctx context.Context, userID uint64) (*chain.User, error)
	GetUserRewards(ctx context.Context, userID uint64) ([]chain.Reward, error)
	GetPost(ctx context.Context, postID uint64) (*chain.Post, error)
	GetPosts(ctx context.Context, ids []uint64) ([]*chain.Post, error)
	GetComment(ctx context.Context, commentID uint64) (*chain.Comment, error)
	GetComments(ctx context.Context, ids []uint64) ([]*chain.Comment, error)
	GetReadSessions(ctx context.Context, postID uint64) ([]chain.ReadSession, error)
	UserIDByAddress(ctx context.Context, addr common.Address) (uint64, error)
	RewardPoints(ctx context.Context) (*chain.RewardPoints, error)

	RegisterUser(ctx context.Context, username, email, bio, profilePictureURL string) (*chain.Receipt, error)
	CreatePost(ctx context.Context, in chain.PostInput) (*chain.Receipt, error)
	UpdatePost(ctx context.Context, postID uint64, in chain.PostInput) (*chain.Receipt, error)
	DeletePost(ctx context.Context, postID uint64) (*chain.Receipt, error)
	AddComment(ctx context.Context, postID uint64, text string, parentCommentID uint64) (*chain.Receipt, error)
	LikePost(ctx context.Context, postID uint64) (*chain.Receipt, error)
	LikeComment(ctx context.Context, commentID uint64) (*chain.Receipt, error)
	RecordReadSession(ctx context.Context, postID, timeSpentReading, scrollPercentage uint64, deviceInfo string) (*chain.Receipt, error)
	UpdateLighthouseMetadata(ctx context.Context, postID uint64, metadata string) (*chain.Receipt, error)
}

var (
	_ ContentStore = (*storage.Client)(nil)
	_ BlogContract = (*chain.Client)(nil)
)

// UploadPolicy controls retries of content uploads.
type UploadPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Profile *ProfileHandler
	Like    *LikeHandler
	Comment *CommentHandler
	Read    *ReadHandler
	Content *ContentHandler
	Chain   *ChainHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(db database.Service, issuer *auth.Issuer, store ContentStore, contract BlogContract, policy UploadPolicy) *Handler {
	gormDB := db.GetDB()
	return &Handler{
		Auth:    NewAuthHandler(gormDB, issuer),
		Profile: NewProfileHandler(gormDB, store, policy),
		Like:    NewLikeHandler(gormDB),
		Comment: NewCommentHandler(gormDB),
		Read:    NewReadHandler(gormDB, db.Stats(), contract),
		Content: NewContentHandler(store, policy),
		Chain:   NewChainHandler(gormDB, contract, store, policy),
	}
}

// respondError writes err as {"error", "code"} with the status of its code.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": apperr.CodeInternal})
		return
	}
	status := apperr.HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperr.New(apperr.CodeInvalidInput, msg))
}

// extractWallet returns the authenticated wallet or answers 401.
func extractWallet(c *gin.Context) (string, bool) {
	wallet, ok := middleware.Wallet(c)
	if !ok {
		respondError(c, apperr.New(apperr.CodeUnauthorized, "User not authenticated"))
	}
	return wallet, ok
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}
