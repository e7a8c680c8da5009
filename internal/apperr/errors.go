package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error identifier returned to API clients.
type Code string

const (
	CodeNoWalletProvider       Code = "NO_WALLET_PROVIDER"
	CodeWrongNetwork           Code = "WRONG_NETWORK"
	CodeNoAccountConnected     Code = "NO_ACCOUNT_CONNECTED"
	CodeSignerConnectionFailed Code = "SIGNER_CONNECTION_FAILED"

	CodeGetUserFailed         Code = "GET_USER_FAILED"
	CodeGetPostFailed         Code = "GET_POST_FAILED"
	CodeGetCommentFailed      Code = "GET_COMMENT_FAILED"
	CodeGetUserRewardsFailed  Code = "GET_USER_REWARDS_FAILED"
	CodeGetReadSessionsFailed Code = "GET_READ_SESSIONS_FAILED"
	CodeGetUserIDFailed       Code = "GET_USER_ID_FAILED"
	CodeGetRewardPointsFailed Code = "GET_REWARD_POINTS_FAILED"

	CodeRegisterUserFailed       Code = "REGISTER_USER_FAILED"
	CodeCreatePostFailed         Code = "CREATE_POST_FAILED"
	CodeUpdatePostFailed         Code = "UPDATE_POST_FAILED"
	CodeDeletePostFailed         Code = "DELETE_POST_FAILED"
	CodeAddCommentFailed         Code = "ADD_COMMENT_FAILED"
	CodeLikePostFailed           Code = "LIKE_POST_FAILED"
	CodeLikeCommentFailed        Code = "LIKE_COMMENT_FAILED"
	CodeRecordReadSessionFailed  Code = "RECORD_READ_SESSION_FAILED"
	CodeUpdateLighthouseMetadata Code = "UPDATE_LIGHTHOUSE_METADATA_FAILED"
	CodeTxReverted               Code = "TX_REVERTED"

	CodeUploadFailed  Code = "UPLOAD_FAILED"
	CodeFetchFailed   Code = "FETCH_FAILED"
	CodeMissingAPIKey Code = "MISSING_API_KEY"
	CodeInvalidCID    Code = "INVALID_CID"

	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL"
)

// Error is an application error carrying a code and the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New returns an *Error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns an *Error around err. An empty message falls back to err's text.
func Wrap(code Code, message string, err error) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != e.Err.Error() {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps an error code to the status returned by the API.
func HTTPStatus(code Code) int {
	switch code {
	case CodeWrongNetwork, CodeNoWalletProvider, CodeNoAccountConnected:
		return http.StatusServiceUnavailable
	case CodeInvalidInput, CodeInvalidCID:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTxReverted:
		return http.StatusUnprocessableEntity
	case CodeUploadFailed, CodeFetchFailed, CodeSignerConnectionFailed,
		CodeGetUserFailed, CodeGetPostFailed, CodeGetCommentFailed,
		CodeGetUserRewardsFailed, CodeGetReadSessionsFailed, CodeGetUserIDFailed,
		CodeGetRewardPointsFailed,
		CodeRegisterUserFailed, CodeCreatePostFailed, CodeUpdatePostFailed,
		CodeDeletePostFailed, CodeAddCommentFailed, CodeLikePostFailed,
		CodeLikeCommentFailed, CodeRecordReadSessionFailed, CodeUpdateLighthouseMetadata:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
