package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// NonceTTL is how long a sign-in nonce stays usable.
const NonceTTL = 10 * time.Minute

var ErrSignatureMismatch = errors.New("signature does not match address")

// NewNonce returns 16 random bytes, hex encoded.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeAddress validates a 0x address and lowercases it for storage.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return "", fmt.Errorf("invalid wallet address %q", address)
	}
	return strings.ToLower(address), nil
}

// SignInMessage is the text the wallet signs for the given nonce.
func SignInMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to FilBlog\n\nWallet: %s\nNonce: %s", strings.ToLower(address), nonce)
}

// personalHash implements the personal_sign digest.
func personalHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return h.Sum(nil)
}

// RecoverAddress returns the account that produced sig over message.
func RecoverAddress(message string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(personalHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that sigHex over message was made by address.
func VerifySignature(address, message, sigHex string) error {
	sig, err := hexutil.Decode(strings.TrimSpace(sigHex))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	signer, err := RecoverAddress(message, sig)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer.Hex(), address) {
		return ErrSignatureMismatch
	}
	return nil
}
