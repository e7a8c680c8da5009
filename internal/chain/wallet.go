package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds the accounts that can sign transactions.
type Wallet interface {
	Accounts() []common.Address
	SignTx(account common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeyWallet is a single-account wallet backed by an in-memory private key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyWallet parses a hex private key, with or without the 0x prefix.
func NewKeyWallet(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeyWalletFromKey(key), nil
}

func NewKeyWalletFromKey(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (w *KeyWallet) Address() common.Address {
	return w.address
}

func (w *KeyWallet) Accounts() []common.Address {
	return []common.Address{w.address}
}

func (w *KeyWallet) SignTx(account common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if account != w.address {
		return nil, fmt.Errorf("unknown account %s", account.Hex())
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}
