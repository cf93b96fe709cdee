// Package genesis provides genesis block creation for the simulator.
package genesis

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/tyler-smith/go-bip39"

	"github.com/stable-net/simnode-go/pkg/config"
)

// Account represents a dev account with its private key.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// GenerateAccounts generates deterministic accounts from a mnemonic.
func GenerateAccounts(mnemonic string, count int) ([]*Account, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	accounts := make([]*Account, count)

	for i := 0; i < count; i++ {
		key, err := deriveKey(seed, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}

		accounts[i] = &Account{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}
	}

	return accounts, nil
}

// deriveKey derives a private key from seed at the given index.
// Uses simplified derivation for testing purposes.
func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	// Create a unique seed for each index by hashing seed + index
	indexBytes := make([]byte, 4)
	indexBytes[0] = byte(index >> 24)
	indexBytes[1] = byte(index >> 16)
	indexBytes[2] = byte(index >> 8)
	indexBytes[3] = byte(index)

	combined := append(seed, indexBytes...)
	hash := crypto.Keccak256(combined)

	return crypto.ToECDSA(hash)
}

// CreateGenesisBlock builds the genesis block and the dev account set
// from the configuration.
func CreateGenesisBlock(cfg *config.Config) (*types.Block, []*Account, error) {
	accounts, err := GenerateAccounts(cfg.Mnemonic, cfg.AccountCount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate accounts: %w", err)
	}

	header := &types.Header{
		ParentHash: common.Hash{},
		Number:     big.NewInt(0),
		Time:       cfg.GenesisTimestamp,
		GasLimit:   cfg.GasLimit,
		Difficulty: big.NewInt(1),
		Coinbase:   accounts[0].Address,
		BaseFee:    big.NewInt(1e9),
	}

	hasher := trie.NewStackTrie(nil)
	block := types.NewBlock(header, nil, nil, nil, hasher)

	return block, accounts, nil
}
