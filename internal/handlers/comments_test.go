package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

func createComment(t *testing.T, e *testEnv, slug, wallet string, body gin.H) commentView {
	t.Helper()
	w := e.do(http.MethodPost, "/blogs/"+slug+"/comments", body, wallet)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[commentView](t, w)
}

func TestCommentThread(t *testing.T) {
	e := newTestEnv(t)
	root := createComment(t, e, "hello", alice, gin.H{"text": "  first!  "})
	assert.Equal(t, "first!", root.Text)
	assert.Equal(t, alice, root.UserID)
	assert.Nil(t, root.ParentCommentID)

	reply := createComment(t, e, "hello", bob, gin.H{"text": "reply", "parent_comment_id": root.ID})
	nested := createComment(t, e, "hello", alice, gin.H{"text": "nested", "parent_comment_id": reply.ID})
	second := createComment(t, e, "hello", bob, gin.H{"text": "second"})
	createComment(t, e, "other", bob, gin.H{"text": "elsewhere"})

	e.do(http.MethodPost, fmt.Sprintf("/blogs/hello/comments/%d/like", reply.ID), nil, alice)

	w := e.do(http.MethodGet, "/blogs/hello/comments", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[[]commentView](t, w)
	require.Len(t, tree, 2)
	assert.Equal(t, root.ID, tree[0].ID)
	assert.Equal(t, second.ID, tree[1].ID)
	require.Len(t, tree[0].Replies, 1)
	got := tree[0].Replies[0]
	assert.Equal(t, reply.ID, got.ID)
	assert.EqualValues(t, 1, got.LikesCount)
	assert.True(t, got.Liked)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, nested.ID, got.Replies[0].ID)
	assert.NotNil(t, tree[1].Replies)

	// Without a token nothing is marked as liked.
	tree = decode[[]commentView](t, e.do(http.MethodGet, "/blogs/hello/comments", nil, ""))
	assert.False(t, tree[0].Replies[0].Liked)
	assert.EqualValues(t, 1, tree[0].Replies[0].LikesCount)

	w = e.do(http.MethodGet, "/blogs/empty/comments", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCreateCommentValidation(t *testing.T) {
	e := newTestEnv(t)
	other := createComment(t, e, "other", alice, gin.H{"text": "x"})

	requireError(t, e.do(http.MethodPost, "/blogs/hello/comments", gin.H{"text": "x"}, ""), http.StatusUnauthorized, apperr.CodeUnauthorized)
	requireError(t, e.do(http.MethodPost, "/blogs/hello/comments", gin.H{}, alice), http.StatusBadRequest, apperr.CodeInvalidInput)
	requireError(t, e.do(http.MethodPost, "/blogs/hello/comments", gin.H{"text": "   "}, alice), http.StatusBadRequest, apperr.CodeInvalidInput)
	requireError(t, e.do(http.MethodPost, "/blogs/hello/comments", gin.H{"text": "x", "parent_comment_id": other.ID}, alice),
		http.StatusBadRequest, apperr.CodeInvalidInput)
	requireError(t, e.do(http.MethodPost, "/blogs/hello/comments", gin.H{"text": "x", "parent_comment_id": 999}, alice),
		http.StatusBadRequest, apperr.CodeInvalidInput)
}

func TestUpdateCommentOwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	cm := createComment(t, e, "hello", alice, gin.H{"text": "draft"})
	path := fmt.Sprintf("/blogs/hello/comments/%d", cm.ID)

	requireError(t, e.do(http.MethodPut, path, gin.H{"text": "hijack"}, bob), http.StatusForbidden, apperr.CodeForbidden)
	requireError(t, e.do(http.MethodPut, "/blogs/other/comments/"+fmt.Sprint(cm.ID), gin.H{"text": "x"}, alice), http.StatusNotFound, apperr.CodeNotFound)

	w := e.do(http.MethodPut, path, gin.H{"text": "final"}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "final", decode[commentView](t, w).Text)

	var stored models.Comment
	require.NoError(t, e.db.GetDB().First(&stored, cm.ID).Error)
	assert.Equal(t, "final", stored.Body)
}

func TestDeleteCommentRemovesRepliesAndLikes(t *testing.T) {
	e := newTestEnv(t)
	root := createComment(t, e, "hello", alice, gin.H{"text": "root"})
	reply := createComment(t, e, "hello", bob, gin.H{"text": "reply", "parent_comment_id": root.ID})
	deep := createComment(t, e, "hello", alice, gin.H{"text": "deep", "parent_comment_id": reply.ID})
	keep := createComment(t, e, "hello", bob, gin.H{"text": "keep"})

	e.do(http.MethodPost, fmt.Sprintf("/blogs/hello/comments/%d/like", deep.ID), nil, bob)
	e.do(http.MethodPost, fmt.Sprintf("/blogs/hello/comments/%d/like", keep.ID), nil, alice)
	e.do(http.MethodPost, "/blogs/hello/like", nil, alice)

	path := fmt.Sprintf("/blogs/hello/comments/%d", root.ID)
	requireError(t, e.do(http.MethodDelete, path, nil, bob), http.StatusForbidden, apperr.CodeForbidden)

	w := e.do(http.MethodDelete, path, nil, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tree := decode[[]commentView](t, e.do(http.MethodGet, "/blogs/hello/comments", nil, ""))
	require.Len(t, tree, 1)
	assert.Equal(t, keep.ID, tree[0].ID)

	var likes []models.Like
	require.NoError(t, e.db.GetDB().Order("id").Find(&likes).Error)
	require.Len(t, likes, 2)
	assert.Equal(t, keep.ID, likes[0].CommentID)
	assert.Zero(t, likes[1].CommentID)

	requireError(t, e.do(http.MethodDelete, path, nil, alice), http.StatusNotFound, apperr.CodeNotFound)
}

func TestCommentLookupsSurfaceDatabaseErrors(t *testing.T) {
	e := newTestEnv(t)
	createComment(t, e, "hello", alice, gin.H{"text": "first"})
	e.failOn("likes")
	requireError(t, e.do(http.MethodGet, "/blogs/hello/comments", nil, alice), http.StatusInternalServerError, apperr.CodeInternal)

	e2 := newTestEnv(t)
	parent := createComment(t, e2, "hello", alice, gin.H{"text": "first"})
	e2.failOn("comments")
	w := e2.do(http.MethodPost, "/blogs/hello/comments", gin.H{"text": "reply", "parent_comment_id": parent.ID}, bob)
	requireError(t, w, http.StatusInternalServerError, apperr.CodeInternal)
}
