package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress("0x24aEAE7fEF8714E9cF2946d4d1b6b698D3D73123")

// fakeBackend answers RPCs in memory and records what the client asked for.
type fakeBackend struct {
	mu sync.Mutex

	chainID     *big.Int
	estimate    uint64
	estimateErr error
	sendErr     error
	callErr     error
	onCall      func(method string, args []any) ([]byte, error)

	pendingPolls  int
	receiptStatus uint64
	logs          []*types.Log

	chainIDCalls  int
	callMsgs      []ethereum.CallMsg
	estimateCalls int
	nonceCalls    int
	sent          []*types.Transaction
	receiptPolls  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:       big.NewInt(FilecoinCalibrationChainID),
		estimate:      100_000,
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainIDCalls++
	return new(big.Int).Set(b.chainID), nil
}

func (b *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	b.callMsgs = append(b.callMsgs, call)
	callErr, onCall := b.callErr, b.onCall
	b.mu.Unlock()

	if callErr != nil {
		return nil, callErr
	}
	method, err := BlogABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	if onCall == nil {
		return nil, errors.New("no call handler")
	}
	return onCall(method.Name, args)
}

func (b *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.estimateCalls++
	return b.estimate, b.estimateErr
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonceCalls++
	return 3, nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(100), nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return b.sendErr
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiptPolls++
	if b.receiptPolls <= b.pendingPolls {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      b.receiptStatus,
		TxHash:      hash,
		GasUsed:     90_000,
		BlockNumber: big.NewInt(42),
		Logs:        b.logs,
	}, nil
}

type emptyWallet struct{}

func (emptyWallet) Accounts() []common.Address { return nil }

func (emptyWallet) SignTx(common.Address, *types.Transaction, *big.Int) (*types.Transaction, error) {
	return nil, errors.New("no accounts")
}

func newTestWallet(t *testing.T) *KeyWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewKeyWalletFromKey(key)
}

func packOutputs(t *testing.T, method string, values ...any) []byte {
	t.Helper()
	out, err := BlogABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func eventLog(t *testing.T, name string, topics []common.Hash, data ...any) *types.Log {
	t.Helper()
	event := BlogABI.Events[name]
	var payload []byte
	if len(data) > 0 {
		var err error
		payload, err = event.Inputs.NonIndexed().Pack(data...)
		require.NoError(t, err)
	}
	return &types.Log{
		Address: testContract,
		Topics:  append([]common.Hash{event.ID}, topics...),
		Data:    payload,
	}
}
