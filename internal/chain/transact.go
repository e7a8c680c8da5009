package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
)

// GasBufferPercent is the gas limit applied on top of every estimate, in percent.
const GasBufferPercent = 120

// TxState tracks a submitted write through to its outcome.
type TxState int

const (
	TxPending TxState = iota
	TxSubmitted
	TxConfirmed
	TxReverted
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxSubmitted:
		return "submitted"
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

func (s TxState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TxState) UnmarshalText(text []byte) error {
	for st := TxPending; st <= TxReverted; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown transaction state %q", text)
}

// Receipt is the outcome of a confirmed write.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasLimit    uint64      `json:"gas_limit"`
	GasUsed     uint64      `json:"gas_used"`
	State       TxState     `json:"state"`
	Events      Events      `json:"events"`
}

// BufferGas returns estimate scaled by GasBufferPercent, rounded down.
func BufferGas(estimate uint64) uint64 {
	q, r := estimate/100, estimate%100
	return q*GasBufferPercent + r*GasBufferPercent/100
}

// account resolves the signing account, checking the network before anything
// else touches the transaction.
func (c *Client) account(ctx context.Context) (common.Address, error) {
	if c.wallet == nil {
		return common.Address{}, apperr.New(apperr.CodeNoWalletProvider, "No wallet provider found")
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return common.Address{}, apperr.Wrap(apperr.CodeSignerConnectionFailed, "Failed to connect with signer", err)
	}
	if id.Cmp(c.chainID) != 0 {
		return common.Address{}, apperr.New(apperr.CodeWrongNetwork,
			fmt.Sprintf("Wrong network: connected to chain %s, expected %s", id, c.chainID))
	}
	accounts := c.wallet.Accounts()
	if len(accounts) == 0 {
		return common.Address{}, apperr.New(apperr.CodeNoAccountConnected, "No account connected. Please connect your wallet")
	}
	return accounts[0], nil
}

// transact runs one write: account checks, estimate, buffer, sign, send, wait.
func (c *Client) transact(ctx context.Context, code apperr.Code, message, method string, args ...any) (rcpt *Receipt, err error) {
	ctx, sp := c.obs.start(ctx, method, true)
	started := time.Now()
	defer func() {
		sp.end(err)
		c.obs.record(ctx, method, true, time.Since(started), err)
	}()

	from, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, apperr.Wrap(code, message, err)
	}
	msg := ethereum.CallMsg{From: from, To: &c.address, Data: input}
	estimate, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, apperr.Wrap(code, message, fmt.Errorf("estimate gas: %w", err))
	}
	gasLimit := BufferGas(estimate)

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, apperr.Wrap(code, message, fmt.Errorf("pending nonce: %w", err))
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperr.Wrap(code, message, fmt.Errorf("gas price: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    new(big.Int),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := c.wallet.SignTx(from, tx, c.chainID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeSignerConnectionFailed, "Failed to sign transaction", err)
	}
	c.obs.state(ctx, method, TxPending, signed.Hash())

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, apperr.Wrap(code, message, fmt.Errorf("send transaction: %w", err))
	}
	c.obs.state(ctx, method, TxSubmitted, signed.Hash())

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, apperr.Wrap(code, message, err)
	}

	rcpt = &Receipt{
		TxHash:   signed.Hash(),
		GasLimit: gasLimit,
		GasUsed:  receipt.GasUsed,
		Events:   c.decodeEvents(receipt.Logs),
	}
	if receipt.BlockNumber != nil {
		rcpt.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusFailed {
		rcpt.State = TxReverted
		c.obs.state(ctx, method, TxReverted, signed.Hash())
		return rcpt, apperr.Wrap(apperr.CodeTxReverted, message,
			fmt.Errorf("transaction %s reverted", signed.Hash().Hex()))
	}
	rcpt.State = TxConfirmed
	c.obs.state(ctx, method, TxConfirmed, signed.Hash())
	return rcpt, nil
}

// waitMined polls for the receipt of hash until it is included in a block.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.obs.logger.LogAttrs(ctx, slog.LevelWarn, "receipt retrieval failed",
				slog.String("tx", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// RegisterUser registers the signing account as a blog user.
func (c *Client) RegisterUser(ctx context.Context, username, email, bio, profilePictureURL string) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeRegisterUserFailed, "Failed to register user",
		methodRegisterUser, username, email, bio, profilePictureURL)
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeCreatePostFailed, "Failed to create post",
		methodCreatePost, in.raw())
}

func (c *Client) UpdatePost(ctx context.Context, postID uint64, in PostInput) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeUpdatePostFailed, "Failed to update post",
		methodUpdatePost, bigID(postID), in.raw())
}

func (c *Client) DeletePost(ctx context.Context, postID uint64) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeDeletePostFailed, "Failed to delete post",
		methodDeletePost, bigID(postID))
}

// AddComment comments on postID. parentCommentID is 0 for a top-level comment.
func (c *Client) AddComment(ctx context.Context, postID uint64, text string, parentCommentID uint64) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeAddCommentFailed, "Failed to add comment",
		methodAddComment, bigID(postID), text, bigID(parentCommentID))
}

func (c *Client) LikePost(ctx context.Context, postID uint64) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeLikePostFailed, "Failed to like post",
		methodLikePost, bigID(postID))
}

func (c *Client) LikeComment(ctx context.Context, commentID uint64) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeLikeCommentFailed, "Failed to like comment",
		methodLikeComment, bigID(commentID))
}

func (c *Client) RecordReadSession(ctx context.Context, postID, timeSpentReading, scrollPercentage uint64, deviceInfo string) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeRecordReadSessionFailed, "Failed to record read session",
		methodRecordReadSession, bigID(postID), bigID(timeSpentReading), bigID(scrollPercentage), deviceInfo)
}

func (c *Client) UpdateLighthouseMetadata(ctx context.Context, postID uint64, metadata string) (*Receipt, error) {
	return c.transact(ctx, apperr.CodeUpdateLighthouseMetadata, "Failed to update lighthouse metadata",
		methodUpdateLighthouseMetadata, bigID(postID), metadata)
}
