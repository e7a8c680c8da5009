package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

func TestGetProfile(t *testing.T) {
	e := newTestEnv(t)
	requireError(t, e.do(http.MethodGet, "/profile", nil, ""), http.StatusBadRequest, apperr.CodeInvalidInput)
	requireError(t, e.do(http.MethodGet, "/profile?address=0xnope", nil, ""), http.StatusBadRequest, apperr.CodeInvalidInput)
	requireError(t, e.do(http.MethodGet, "/profile?address="+alice, nil, ""), http.StatusNotFound, apperr.CodeNotFound)

	require.NoError(t, e.db.GetDB().Create(&models.User{WalletAddress: alice, Username: "alice", ProfilePicture: "https://x/ipfs/a"}).Error)
	w := e.do(http.MethodGet, "/profile?address="+alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"alice","profile_picture":"https://x/ipfs/a"}`, w.Body.String())
}

func TestUpdateProfileUploadsPicture(t *testing.T) {
	e := newTestEnv(t)
	req := multipartRequest(t, http.MethodPut, "/profile", map[string]string{"username": "alice"}, "picture", "me.png", []byte("png bytes"))
	w := e.send(req, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user := decode[models.User](t, w)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, e.store.GatewayURL(e.store.hash), user.ProfilePicture)
	assert.Equal(t, []string{"me.png"}, e.store.names)
	assert.Equal(t, []int{3}, e.store.attempts)

	w = e.do(http.MethodGet, "/profile?address="+alice, nil, "")
	assert.JSONEq(t, `{"username":"alice","profile_picture":"`+user.ProfilePicture+`"}`, w.Body.String())
}

func TestUpdateProfileUsernameOnly(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPut, "/profile", gin.H{"username": "  bobby  "}, bob)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "bobby", decode[models.User](t, w).Username)
	assert.Empty(t, e.store.names)
}

func TestUpdateProfileRejects(t *testing.T) {
	e := newTestEnv(t)
	key := "alice"
	require.NoError(t, e.db.GetDB().Create(&models.User{WalletAddress: alice, Username: "Alice", UsernameKey: &key}).Error)

	requireError(t, e.do(http.MethodPut, "/profile", gin.H{"username": "x"}, ""), http.StatusUnauthorized, apperr.CodeUnauthorized)
	requireError(t, e.do(http.MethodPut, "/profile", gin.H{"username": "ALICE"}, bob), http.StatusConflict, apperr.CodeConflict)
	requireError(t, e.do(http.MethodPut, "/profile", gin.H{}, bob), http.StatusBadRequest, apperr.CodeInvalidInput)

	// Keeping your own name is not a conflict.
	w := e.do(http.MethodPut, "/profile", gin.H{"username": "alice"}, alice)
	assert.Equal(t, http.StatusOK, w.Code)

	e.store.err = apperr.Wrap(apperr.CodeUploadFailed, "Failed to upload to IPFS after 3 attempts", errors.New("node busy"))
	req := multipartRequest(t, http.MethodPut, "/profile", nil, "picture", "me.png", []byte("png"))
	requireError(t, e.send(req, bob), http.StatusBadGateway, apperr.CodeUploadFailed)
}

func TestUsernamesAreUniqueInTheDatabase(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/profile", gin.H{"username": "Alice"}, alice).Code)

	var stored models.User
	require.NoError(t, e.db.GetDB().First(&stored, "wallet_address = ?", alice).Error)
	require.NotNil(t, stored.UsernameKey)
	assert.Equal(t, "alice", *stored.UsernameKey)

	// A writer that skips the handler still hits the index.
	key := "alice"
	err := e.db.GetDB().Create(&models.User{WalletAddress: "0x0000000000000000000000000000000000c0ffee", Username: "ALICE", UsernameKey: &key}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Users without a name do not collide.
	for _, wallet := range []string{bob, "0x0000000000000000000000000000000000000d0d"} {
		req := multipartRequest(t, http.MethodPut, "/profile", nil, "picture", "a.png", []byte("png"))
		w := e.send(req, wallet)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Empty(t, decode[models.User](t, w).Username)
	}
}
