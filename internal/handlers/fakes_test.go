package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/ipfs/go-cid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/auth"
	"github.com/emilythestrangee/filblog/backend/internal/chain"
	"github.com/emilythestrangee/filblog/backend/internal/database"
	"github.com/emilythestrangee/filblog/backend/internal/middleware"
	"github.com/emilythestrangee/filblog/backend/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"
)

func testCID(t *testing.T, data string) string {
	t.Helper()
	c, err := cid.V0Builder{}.WithCodec(cid.Raw).Sum([]byte(data))
	require.NoError(t, err)
	return c.String()
}

// fakeStore keeps uploads in memory.
type fakeStore struct {
	mu       sync.Mutex
	hash     string
	err      error
	uploads  map[string][]byte
	names    []string
	attempts []int
}

func newFakeStore(hash string) *fakeStore {
	return &fakeStore{hash: hash, uploads: map[string][]byte{}}
}

func (s *fakeStore) put(name string, data []byte) (*storage.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.names = append(s.names, name)
	s.uploads[s.hash] = data
	return &storage.UploadResult{Name: name, Hash: s.hash, Size: strconv.Itoa(len(data))}, nil
}

func (s *fakeStore) Upload(ctx context.Context, name string, r io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return s.put(name, data)
}

func (s *fakeStore) UploadWithRetry(ctx context.Context, name string, data []byte, maxRetries int, baseDelay time.Duration) (*storage.UploadResult, error) {
	s.mu.Lock()
	s.attempts = append(s.attempts, maxRetries)
	s.mu.Unlock()
	return s.put(name, data)
}

func (s *fakeStore) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[contentID]
	if !ok {
		return nil, apperr.New(apperr.CodeFetchFailed, "Failed to fetch from IPFS")
	}
	return data, nil
}

func (s *fakeStore) GatewayURL(contentID string) string {
	return "https://gateway.test/ipfs/" + contentID
}

// fakeContract serves contract reads from maps and records writes.
type fakeContract struct {
	mu       sync.Mutex
	users    map[uint64]*chain.User
	posts    map[uint64]*chain.Post
	comments map[uint64]*chain.Comment
	userIDs  map[common.Address]uint64
	rewards  map[uint64][]chain.Reward
	sessions map[uint64][]chain.ReadSession

	writeErr    error
	nextPostID  uint64
	lastInput   chain.PostInput
	calls       []string
	commentRead [][]uint64
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		users:      map[uint64]*chain.User{},
		posts:      map[uint64]*chain.Post{},
		comments:   map[uint64]*chain.Comment{},
		userIDs:    map[common.Address]uint64{},
		rewards:    map[uint64][]chain.Reward{},
		sessions:   map[uint64][]chain.ReadSession{},
		nextPostID: 1,
	}
}

func (f *fakeContract) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeContract) receipt(ev chain.Events) (*chain.Receipt, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &chain.Receipt{
		TxHash:      common.HexToHash("0xabc123"),
		BlockNumber: 42,
		State:       chain.TxConfirmed,
		Events:      ev,
	}, nil
}

func (f *fakeContract) GetUser(ctx context.Context, userID uint64) (*chain.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return &chain.User{ID: userID}, nil
}

func (f *fakeContract) GetUserRewards(ctx context.Context, userID uint64) ([]chain.Reward, error) {
	return f.rewards[userID], nil
}

func (f *fakeContract) GetPost(ctx context.Context, postID uint64) (*chain.Post, error) {
	if p, ok := f.posts[postID]; ok {
		return p, nil
	}
	return &chain.Post{ID: postID, Tags: []string{}}, nil
}

func (f *fakeContract) GetPosts(ctx context.Context, ids []uint64) ([]*chain.Post, error) {
	out := make([]*chain.Post, len(ids))
	for i, id := range ids {
		out[i], _ = f.GetPost(ctx, id)
	}
	return out, nil
}

func (f *fakeContract) GetComment(ctx context.Context, commentID uint64) (*chain.Comment, error) {
	if c, ok := f.comments[commentID]; ok {
		return c, nil
	}
	return &chain.Comment{ID: commentID}, nil
}

func (f *fakeContract) GetComments(ctx context.Context, ids []uint64) ([]*chain.Comment, error) {
	f.mu.Lock()
	f.commentRead = append(f.commentRead, append([]uint64(nil), ids...))
	f.mu.Unlock()
	out := make([]*chain.Comment, len(ids))
	for i, id := range ids {
		out[i], _ = f.GetComment(ctx, id)
	}
	return out, nil
}

func (f *fakeContract) GetReadSessions(ctx context.Context, postID uint64) ([]chain.ReadSession, error) {
	return f.sessions[postID], nil
}

func (f *fakeContract) UserIDByAddress(ctx context.Context, addr common.Address) (uint64, error) {
	return f.userIDs[addr], nil
}

func (f *fakeContract) RewardPoints(ctx context.Context) (*chain.RewardPoints, error) {
	return &chain.RewardPoints{Post: 10, Comment: 5, Like: 1, Read: 2}, nil
}

func (f *fakeContract) RegisterUser(ctx context.Context, username, email, bio, profilePictureURL string) (*chain.Receipt, error) {
	f.record("registerUser:" + username)
	return f.receipt(chain.Events{})
}

func (f *fakeContract) CreatePost(ctx context.Context, in chain.PostInput) (*chain.Receipt, error) {
	f.record("createPost")
	f.mu.Lock()
	f.lastInput = in
	id := f.nextPostID
	f.nextPostID++
	f.mu.Unlock()
	return f.receipt(chain.Events{PostID: id})
}

func (f *fakeContract) UpdatePost(ctx context.Context, postID uint64, in chain.PostInput) (*chain.Receipt, error) {
	f.record("updatePost:" + strconv.FormatUint(postID, 10))
	f.mu.Lock()
	f.lastInput = in
	f.mu.Unlock()
	return f.receipt(chain.Events{})
}

func (f *fakeContract) DeletePost(ctx context.Context, postID uint64) (*chain.Receipt, error) {
	f.record("deletePost:" + strconv.FormatUint(postID, 10))
	return f.receipt(chain.Events{})
}

func (f *fakeContract) AddComment(ctx context.Context, postID uint64, text string, parentCommentID uint64) (*chain.Receipt, error) {
	f.record("addComment:" + strconv.FormatUint(postID, 10) + ":" + strconv.FormatUint(parentCommentID, 10))
	return f.receipt(chain.Events{CommentID: 9})
}

func (f *fakeContract) LikePost(ctx context.Context, postID uint64) (*chain.Receipt, error) {
	f.record("likePost:" + strconv.FormatUint(postID, 10))
	return f.receipt(chain.Events{})
}

func (f *fakeContract) LikeComment(ctx context.Context, commentID uint64) (*chain.Receipt, error) {
	f.record("likeComment:" + strconv.FormatUint(commentID, 10))
	return f.receipt(chain.Events{})
}

func (f *fakeContract) RecordReadSession(ctx context.Context, postID, timeSpentReading, scrollPercentage uint64, deviceInfo string) (*chain.Receipt, error) {
	f.record("recordReadSession:" + strconv.FormatUint(postID, 10) + ":" +
		strconv.FormatUint(timeSpentReading, 10) + ":" + strconv.FormatUint(scrollPercentage, 10))
	return f.receipt(chain.Events{})
}

func (f *fakeContract) UpdateLighthouseMetadata(ctx context.Context, postID uint64, metadata string) (*chain.Receipt, error) {
	f.record("updateLighthouseMetadata:" + strconv.FormatUint(postID, 10) + ":" + metadata)
	return f.receipt(chain.Events{})
}

type testEnv struct {
	t        *testing.T
	db       database.Service
	issuer   *auth.Issuer
	h        *Handler
	store    *fakeStore
	contract *fakeContract
	router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db, err := database.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), logger.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &testEnv{
		t:        t,
		db:       db,
		issuer:   auth.NewIssuer("test-secret"),
		store:    newFakeStore(testCID(t, "stored")),
		contract: newFakeContract(),
	}
	e.h = NewHandler(db, e.issuer, e.store, e.contract, UploadPolicy{MaxRetries: 3, RetryDelay: time.Millisecond})
	e.router = e.routes()
	return e
}

// routes registers every handler behind OptionalAuth, so handlers decide
// themselves when a wallet is required.
func (e *testEnv) routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.OptionalAuth(e.issuer))
	h := e.h
	r.POST("/auth/nonce", h.Auth.Nonce)
	r.POST("/auth/verify", h.Auth.Verify)
	r.GET("/me", h.Auth.GetMe)

	r.GET("/profile", h.Profile.GetProfile)
	r.PUT("/profile", h.Profile.UpdateProfile)

	r.GET("/blogs/:slug/like", h.Like.GetBlogLike)
	r.POST("/blogs/:slug/like", h.Like.ToggleBlogLike)
	r.GET("/blogs/:slug/comments", h.Comment.GetComments)
	r.POST("/blogs/:slug/comments", h.Comment.CreateComment)
	r.PUT("/blogs/:slug/comments/:id", h.Comment.UpdateComment)
	r.DELETE("/blogs/:slug/comments/:id", h.Comment.DeleteComment)
	r.POST("/blogs/:slug/comments/:id/like", h.Like.ToggleCommentLike)

	r.POST("/reads", h.Read.RecordRead)
	r.GET("/analytics/top", h.Read.TopBlogs)
	r.GET("/analytics/blogs/:slug", h.Read.BlogStats)
	r.GET("/analytics/:address", h.Read.GetReaderStats)

	r.POST("/content", h.Content.Upload)
	r.GET("/content/:cid", h.Content.Fetch)

	r.GET("/chain/users/:id", h.Chain.GetUser)
	r.GET("/chain/users/:id/rewards", h.Chain.GetUserRewards)
	r.POST("/chain/users", h.Chain.RegisterUser)
	r.GET("/chain/posts", h.Chain.ListPosts)
	r.POST("/chain/posts", h.Chain.CreatePost)
	r.GET("/chain/posts/:id", h.Chain.GetPost)
	r.PUT("/chain/posts/:id", h.Chain.UpdatePost)
	r.DELETE("/chain/posts/:id", h.Chain.DeletePost)
	r.GET("/chain/posts/:id/read-sessions", h.Chain.GetReadSessions)
	r.GET("/chain/posts/:id/comments", h.Chain.GetPostComments)
	r.POST("/chain/posts/:id/comments", h.Chain.AddComment)
	r.POST("/chain/posts/:id/like", h.Chain.LikePost)
	r.PUT("/chain/posts/:id/metadata", h.Chain.UpdateMetadata)
	r.GET("/chain/comments/:id", h.Chain.GetComment)
	r.POST("/chain/comments/:id/like", h.Chain.LikeComment)
	r.GET("/chain/address/:address/user-id", h.Chain.UserIDByAddress)
	r.GET("/chain/reward-points", h.Chain.RewardPoints)
	return r
}

// failOn makes every query and update of table fail.
func (e *testEnv) failOn(table string) {
	e.t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("database is locked"))
		}
	}
	cb := e.db.GetDB().Callback()
	require.NoError(e.t, cb.Query().Before("gorm:query").Register("test:fail_query", fail))
	require.NoError(e.t, cb.Update().Before("gorm:update").Register("test:fail_update", fail))
}

func (e *testEnv) token(wallet string) string {
	e.t.Helper()
	tok, _, err := e.issuer.Issue(wallet)
	require.NoError(e.t, err)
	return tok
}

// do sends body as JSON (or as-is for strings) on behalf of wallet, if set.
func (e *testEnv) do(method, path string, body any, wallet string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, wallet)
}

func (e *testEnv) send(req *http.Request, wallet string) *httptest.ResponseRecorder {
	if wallet != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(wallet))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// multipartRequest builds a form with fields and, if fileField is set, one file.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, fileField, fileName string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code apperr.Code) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	require.Equal(t, code, decode[errorBody](t, w).Code)
}
