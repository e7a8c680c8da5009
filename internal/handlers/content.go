package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/storage"
)

const maxUploadBytes = 20 << 20

type ContentHandler struct {
	store  ContentStore
	policy UploadPolicy
}

func NewContentHandler(store ContentStore, policy UploadPolicy) *ContentHandler {
	return &ContentHandler{store: store, policy: policy}
}

func uploadView(store ContentStore, res *storage.UploadResult) gin.H {
	return gin.H{
		"cid":  res.Hash,
		"name": res.Name,
		"size": res.Size,
		"url":  store.GatewayURL(res.Hash),
	}
}

// readPayload takes either a multipart "file" or a JSON {"text"} body.
func readPayload(c *gin.Context) (name string, data []byte, err error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", nil, apperr.Wrap(apperr.CodeInvalidInput, "file is required", err)
		}
		if fh.Size > maxUploadBytes {
			return "", nil, apperr.New(apperr.CodeInvalidInput, "file must be 20MB or smaller")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		return fh.Filename, data, err
	}

	var input struct {
		Name string `json:"name"`
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		return "", nil, apperr.Wrap(apperr.CodeInvalidInput, err.Error(), err)
	}
	if input.Name == "" {
		input.Name = "content.txt"
	}
	return input.Name, []byte(input.Text), nil
}

// Upload stores text or a file on IPFS.
func (h *ContentHandler) Upload(c *gin.Context) {
	name, data, err := readPayload(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.store.UploadWithRetry(c.Request.Context(), name, data, h.policy.MaxRetries, h.policy.RetryDelay)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadView(h.store, res))
}

// Fetch proxies raw content from the gateway.
func (h *ContentHandler) Fetch(c *gin.Context) {
	data, err := h.store.Fetch(c.Request.Context(), c.Param("cid"))
	if err != nil {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			err = apperr.Wrap(apperr.CodeFetchFailed, "Failed to fetch from IPFS", err)
		}
		respondError(c, err)
		return
	}
	contentType := servedContentType(data)
	if contentType == octetStream {
		c.Header("Content-Disposition", `attachment; filename="`+c.Param("cid")+`"`)
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'; sandbox")
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}

const octetStream = "application/octet-stream"

// servedContentType lets plain text and raster images render inline. Anything
// else, HTML and SVG included, is sent as a download.
func servedContentType(data []byte) string {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "text/plain"):
		return ct
	case strings.HasPrefix(ct, "image/") && !strings.Contains(ct, "svg"):
		return ct
	}
	return octetStream
}
