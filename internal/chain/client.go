package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
)

// FilecoinCalibrationChainID is the chain id of the Filecoin Calibration testnet.
const FilecoinCalibrationChainID int64 = 314159

// DefaultPollInterval is how often receipts are polled while waiting for a
// confirmation.
const DefaultPollInterval = time.Second

// Backend is the subset of the JSON-RPC API the client needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Client is a typed binding of the Blog contract.
type Client struct {
	backend      Backend
	wallet       Wallet
	address      common.Address
	chainID      *big.Int
	abi          abi.ABI
	pollInterval time.Duration
	obs          observability
}

type Option func(*Client)

// WithWallet sets the signer used for write operations.
func WithWallet(w Wallet) Option {
	return func(c *Client) {
		c.wallet = w
	}
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient binds the contract at address on backend. chainID is the network
// every write must be submitted to.
func NewClient(backend Backend, address common.Address, chainID int64, opts ...Option) *Client {
	c := &Client{
		backend:      backend,
		address:      address,
		chainID:      big.NewInt(chainID),
		abi:          BlogABI,
		pollInterval: DefaultPollInterval,
		obs:          defaultObservability(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to rpcURL and binds the contract.
func Dial(ctx context.Context, rpcURL string, address common.Address, chainID int64, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return NewClient(ec, address, chainID, opts...), nil
}

// Address returns the bound contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// ChainID returns the expected chain id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// call performs a single eth_call against the contract and decodes the result.
func (c *Client) call(ctx context.Context, code apperr.Code, message, method string, args ...any) (out []any, err error) {
	ctx, sp := c.obs.start(ctx, method, false)
	started := time.Now()
	defer func() {
		sp.end(err)
		c.obs.record(ctx, method, false, time.Since(started), err)
	}()

	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, apperr.Wrap(code, message, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, apperr.Wrap(code, message, err)
	}
	out, err = c.abi.Unpack(method, raw)
	if err != nil {
		return nil, apperr.Wrap(code, message, err)
	}
	if len(out) == 0 {
		return nil, apperr.Wrap(code, message, fmt.Errorf("%s returned no values", method))
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, userID uint64) (*User, error) {
	out, err := c.call(ctx, apperr.CodeGetUserFailed, "Failed to fetch user", methodGetUser, bigID(userID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(rawUser)).(*rawUser)
	return raw.toUser(userID), nil
}

func (c *Client) GetPost(ctx context.Context, postID uint64) (*Post, error) {
	out, err := c.call(ctx, apperr.CodeGetPostFailed, "Failed to fetch post", methodGetPost, bigID(postID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(rawPost)).(*rawPost)
	return raw.toPost(postID), nil
}

// GetPosts fetches several posts concurrently. Results keep the order of ids.
func (c *Client) GetPosts(ctx context.Context, ids []uint64) ([]*Post, error) {
	posts := make([]*Post, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			p, err := c.GetPost(gctx, id)
			if err != nil {
				return err
			}
			posts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetComment(ctx context.Context, commentID uint64) (*Comment, error) {
	out, err := c.call(ctx, apperr.CodeGetCommentFailed, "Failed to fetch comment", methodGetComment, bigID(commentID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(rawComment)).(*rawComment)
	return raw.toComment(commentID), nil
}

// GetComments fetches several comments concurrently. Results keep the order of ids.
func (c *Client) GetComments(ctx context.Context, ids []uint64) ([]*Comment, error) {
	comments := make([]*Comment, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			cm, err := c.GetComment(gctx, id)
			if err != nil {
				return err
			}
			comments[i] = cm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) GetUserRewards(ctx context.Context, userID uint64) ([]Reward, error) {
	out, err := c.call(ctx, apperr.CodeGetUserRewardsFailed, "Failed to fetch user rewards", methodGetUserRewards, bigID(userID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]rawReward)).(*[]rawReward)
	rewards := make([]Reward, 0, len(raw))
	for _, r := range raw {
		rewards = append(rewards, r.toReward())
	}
	return rewards, nil
}

func (c *Client) GetReadSessions(ctx context.Context, postID uint64) ([]ReadSession, error) {
	out, err := c.call(ctx, apperr.CodeGetReadSessionsFailed, "Failed to fetch read sessions", methodGetReadSessions, bigID(postID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]rawReadSession)).(*[]rawReadSession)
	sessions := make([]ReadSession, 0, len(raw))
	for _, r := range raw {
		sessions = append(sessions, r.toReadSession())
	}
	return sessions, nil
}

// UserIDByAddress returns the user id registered for addr, or 0.
func (c *Client) UserIDByAddress(ctx context.Context, addr common.Address) (uint64, error) {
	out, err := c.call(ctx, apperr.CodeGetUserIDFailed, "Failed to fetch user ID", methodAddressToUserID, addr)
	if err != nil {
		return 0, err
	}
	id := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return u64(id), nil
}

func (c *Client) RewardPoints(ctx context.Context) (*RewardPoints, error) {
	methods := []string{methodPointsPerPost, methodPointsComment, methodPointsLike, methodPointsRead}
	values := make([]uint64, len(methods))
	for i, m := range methods {
		out, err := c.call(ctx, apperr.CodeGetRewardPointsFailed, "Failed to fetch reward points", m)
		if err != nil {
			return nil, err
		}
		values[i] = u64(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
	}
	return &RewardPoints{Post: values[0], Comment: values[1], Like: values[2], Read: values[3]}, nil
}
