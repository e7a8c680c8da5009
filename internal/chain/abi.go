package chain

import (
	_ "embed"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed blog_abi.json
var blogABIJSON string

// BlogABI is the parsed interface of the deployed Blog contract.
var BlogABI = mustParseABI(blogABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid Blog ABI: " + err.Error())
	}
	return parsed
}

const (
	methodRegisterUser             = "registerUser"
	methodCreatePost               = "createPost"
	methodUpdatePost               = "updatePost"
	methodDeletePost               = "deletePost"
	methodAddComment               = "addComment"
	methodLikePost                 = "likePost"
	methodLikeComment              = "likeComment"
	methodRecordReadSession        = "recordReadSession"
	methodUpdateLighthouseMetadata = "updateLighthouseMetadata"

	methodGetUser         = "getUser"
	methodGetPost         = "getPost"
	methodGetComment      = "getComment"
	methodGetUserRewards  = "getUserRewards"
	methodGetReadSessions = "getReadSessions"
	methodAddressToUserID = "addressToUserId"
	methodPointsPerPost   = "POINTS_PER_POST"
	methodPointsComment   = "POINTS_PER_COMMENT"
	methodPointsLike      = "POINTS_PER_LIKE"
	methodPointsRead      = "POINTS_PER_READ"

	eventUserRegistered = "UserRegistered"
	eventPostCreated    = "PostCreated"
	eventCommentAdded   = "CommentAdded"
	eventRewardEarned   = "RewardEarned"
)
