package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Visibility is the on-chain post state.
type Visibility uint8

const (
	Public Visibility = iota
	Private
	Draft
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Draft:
		return "draft"
	default:
		return "unknown"
	}
}

// ParseVisibility accepts the names returned by String.
func ParseVisibility(s string) (Visibility, bool) {
	switch s {
	case "", "public":
		return Public, true
	case "private":
		return Private, true
	case "draft":
		return Draft, true
	}
	return 0, false
}

// RewardSource identifies the action a reward was earned for.
type RewardSource uint8

const (
	RewardPost RewardSource = iota
	RewardComment
	RewardLike
	RewardRead
)

func (s RewardSource) String() string {
	switch s {
	case RewardPost:
		return "post"
	case RewardComment:
		return "comment"
	case RewardLike:
		return "like"
	case RewardRead:
		return "read"
	default:
		return "unknown"
	}
}

type User struct {
	ID                uint64    `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Bio               string    `json:"bio"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	JoinedDate        time.Time `json:"joined_date"`
	TotalPosts        uint64    `json:"total_posts"`
	TotalEngagements  uint64    `json:"total_engagements"`
	RewardPoints      uint64    `json:"reward_points"`
	Exists            bool      `json:"exists"`
}

type Post struct {
	ID                 uint64     `json:"id"`
	AuthorID           uint64     `json:"author_id"`
	Title              string     `json:"title"`
	ContentCID         string     `json:"content_cid"`
	Tags               []string   `json:"tags"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Visibility         Visibility `json:"visibility"`
	ViewCount          uint64     `json:"view_count"`
	LikesCount         uint64     `json:"likes_count"`
	CommentsCount      uint64     `json:"comments_count"`
	OnChainHash        string     `json:"on_chain_hash"`
	ImageCID           string     `json:"image_cid"`
	LighthouseMetadata string     `json:"lighthouse_metadata"`
	Exists             bool       `json:"exists"`
}

type Comment struct {
	ID              uint64    `json:"id"`
	UserID          uint64    `json:"user_id"`
	PostID          uint64    `json:"post_id"`
	Text            string    `json:"comment_text"`
	Timestamp       time.Time `json:"timestamp"`
	LikesCount      uint64    `json:"likes_count"`
	ParentCommentID uint64    `json:"parent_comment_id"`
	Exists          bool      `json:"exists"`
}

type ReadSession struct {
	UserID           uint64 `json:"user_id"`
	PostID           uint64 `json:"post_id"`
	TimeSpentReading uint64 `json:"time_spent_reading"`
	ScrollPercentage uint64 `json:"scroll_percentage"`
	DeviceInfo       string `json:"device_info"`
}

type Reward struct {
	UserID          uint64       `json:"user_id"`
	Source          RewardSource `json:"source"`
	PointsEarned    uint64       `json:"points_earned"`
	Timestamp       time.Time    `json:"timestamp"`
	TransactionHash string       `json:"transaction_hash"`
}

// RewardPoints holds the contract's per-action point constants.
type RewardPoints struct {
	Post    uint64 `json:"post"`
	Comment uint64 `json:"comment"`
	Like    uint64 `json:"like"`
	Read    uint64 `json:"read"`
}

// PostInput is the payload of createPost and updatePost.
type PostInput struct {
	Title              string     `json:"title"`
	ContentCID         string     `json:"content_cid"`
	Tags               []string   `json:"tags"`
	Visibility         Visibility `json:"visibility"`
	ImageCID           string     `json:"image_cid"`
	LighthouseMetadata string     `json:"lighthouse_metadata"`
}

// The raw* types mirror the ABI tuples field for field; abi.ConvertType
// matches them by name.

type rawUser struct {
	Username          string
	Email             string
	Bio               string
	ProfilePictureUrl string
	JoinedDate        *big.Int
	TotalPosts        *big.Int
	TotalEngagements  *big.Int
	RewardPoints      *big.Int
	Exists            bool
}

type rawPost struct {
	AuthorId           *big.Int
	Title              string
	Content            string
	Tags               []string
	CreatedAt          *big.Int
	UpdatedAt          *big.Int
	Visibility         uint8
	ViewCount          *big.Int
	LikesCount         *big.Int
	CommentsCount      *big.Int
	OnChainHash        string
	ImageCid           string
	LighthouseMetadata string
	Exists             bool
}

type rawComment struct {
	UserId          *big.Int
	PostId          *big.Int
	CommentText     string
	Timestamp       *big.Int
	LikesCount      *big.Int
	ParentCommentId *big.Int
	Exists          bool
}

type rawReadSession struct {
	UserId           *big.Int
	PostId           *big.Int
	TimeSpentReading *big.Int
	ScrollPercentage *big.Int
	DeviceInfo       string
}

type rawReward struct {
	UserId          *big.Int
	Source          uint8
	PointsEarned    *big.Int
	Timestamp       *big.Int
	TransactionHash string
}

type rawPostInput struct {
	Title              string
	Content            string
	Tags               []string
	Visibility         uint8
	ImageCid           string
	LighthouseMetadata string
}

func u64(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(int64(u64(v)), 0).UTC()
}

func (r rawUser) toUser(id uint64) *User {
	return &User{
		ID:                id,
		Username:          r.Username,
		Email:             r.Email,
		Bio:               r.Bio,
		ProfilePictureURL: r.ProfilePictureUrl,
		JoinedDate:        unixTime(r.JoinedDate),
		TotalPosts:        u64(r.TotalPosts),
		TotalEngagements:  u64(r.TotalEngagements),
		RewardPoints:      u64(r.RewardPoints),
		Exists:            r.Exists,
	}
}

func (r rawPost) toPost(id uint64) *Post {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return &Post{
		ID:                 id,
		AuthorID:           u64(r.AuthorId),
		Title:              r.Title,
		ContentCID:         r.Content,
		Tags:               tags,
		CreatedAt:          unixTime(r.CreatedAt),
		UpdatedAt:          unixTime(r.UpdatedAt),
		Visibility:         Visibility(r.Visibility),
		ViewCount:          u64(r.ViewCount),
		LikesCount:         u64(r.LikesCount),
		CommentsCount:      u64(r.CommentsCount),
		OnChainHash:        r.OnChainHash,
		ImageCID:           r.ImageCid,
		LighthouseMetadata: r.LighthouseMetadata,
		Exists:             r.Exists,
	}
}

func (r rawComment) toComment(id uint64) *Comment {
	return &Comment{
		ID:              id,
		UserID:          u64(r.UserId),
		PostID:          u64(r.PostId),
		Text:            r.CommentText,
		Timestamp:       unixTime(r.Timestamp),
		LikesCount:      u64(r.LikesCount),
		ParentCommentID: u64(r.ParentCommentId),
		Exists:          r.Exists,
	}
}

func (r rawReadSession) toReadSession() ReadSession {
	return ReadSession{
		UserID:           u64(r.UserId),
		PostID:           u64(r.PostId),
		TimeSpentReading: u64(r.TimeSpentReading),
		ScrollPercentage: u64(r.ScrollPercentage),
		DeviceInfo:       r.DeviceInfo,
	}
}

func (r rawReward) toReward() Reward {
	return Reward{
		UserID:          u64(r.UserId),
		Source:          RewardSource(r.Source),
		PointsEarned:    u64(r.PointsEarned),
		Timestamp:       unixTime(r.Timestamp),
		TransactionHash: r.TransactionHash,
	}
}

func (in PostInput) raw() rawPostInput {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return rawPostInput{
		Title:              in.Title,
		Content:            in.ContentCID,
		Tags:               tags,
		Visibility:         uint8(in.Visibility),
		ImageCid:           in.ImageCID,
		LighthouseMetadata: in.LighthouseMetadata,
	}
}

func bigID(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

// UserRegistration is the decoded UserRegistered event.
type UserRegistration struct {
	UserID  uint64         `json:"user_id"`
	Address common.Address `json:"address"`
}

// RewardEvent is the decoded RewardEarned event.
type RewardEvent struct {
	UserID uint64       `json:"user_id"`
	Points uint64       `json:"points"`
	Source RewardSource `json:"source"`
}
