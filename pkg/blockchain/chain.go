// Package blockchain provides blockchain management for the simulator.
package blockchain

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Common errors.
var (
	ErrBlockNotFound = errors.New("block not found")
	ErrNoGenesis     = errors.New("no genesis block set")
	ErrInvalidBlock  = errors.New("invalid block")
)

// Chain manages the in-memory block history.
type Chain struct {
	chainID *big.Int

	// Block storage
	blocks       map[common.Hash]*types.Block
	blockNumbers map[uint64]common.Hash
	headers      map[common.Hash]*types.Header

	// Current state
	currentBlock *types.Block
	genesis      *types.Block

	coinbase common.Address

	mu sync.RWMutex
}

// NewChain creates a new blockchain manager.
func NewChain(chainID *big.Int) *Chain {
	// Default coinbase is the first dev account
	defaultCoinbase := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	return &Chain{
		chainID:      chainID,
		blocks:       make(map[common.Hash]*types.Block),
		blockNumbers: make(map[uint64]common.Hash),
		headers:      make(map[common.Hash]*types.Header),
		coinbase:     defaultCoinbase,
	}
}

// ChainID returns the chain ID.
func (c *Chain) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SetGenesis sets the genesis block.
func (c *Chain) SetGenesis(block *types.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if block.NumberU64() != 0 {
		return ErrInvalidBlock
	}

	c.genesis = block
	c.currentBlock = block
	c.blocks[block.Hash()] = block
	c.blockNumbers[0] = block.Hash()
	c.headers[block.Hash()] = block.Header()

	return nil
}

// CurrentBlock returns the current head block.
func (c *Chain) CurrentBlock() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.currentBlock
}

// BlockNumber returns the current block number.
func (c *Chain) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.currentBlock == nil {
		return 0
	}
	return c.currentBlock.NumberU64()
}

// AddBlock adds a new block to the chain.
func (c *Chain) AddBlock(block *types.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.genesis == nil {
		return ErrNoGenesis
	}

	// Verify parent exists
	if _, exists := c.blocks[block.ParentHash()]; !exists {
		return ErrInvalidBlock
	}

	// Verify block number is sequential
	expectedNumber := c.currentBlock.NumberU64() + 1
	if block.NumberU64() != expectedNumber {
		return ErrInvalidBlock
	}

	c.blocks[block.Hash()] = block
	c.blockNumbers[block.NumberU64()] = block.Hash()
	c.headers[block.Hash()] = block.Header()
	c.currentBlock = block

	return nil
}

// BlockByNumber retrieves a block by its number.
func (c *Chain) BlockByNumber(number uint64) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash, exists := c.blockNumbers[number]
	if !exists {
		return nil, ErrBlockNotFound
	}

	block, exists := c.blocks[hash]
	if !exists {
		return nil, ErrBlockNotFound
	}

	return block, nil
}

// BlockByHash retrieves a block by its hash.
func (c *Chain) BlockByHash(hash common.Hash) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	block, exists := c.blocks[hash]
	if !exists {
		return nil, ErrBlockNotFound
	}

	return block, nil
}

// HasBlock checks if a block exists.
func (c *Chain) HasBlock(hash common.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.blocks[hash]
	return exists
}

// GetHeader returns the header for a block hash.
func (c *Chain) GetHeader(hash common.Hash) *types.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.headers[hash]
}

// GetHeaderByNumber returns the header for a block number.
func (c *Chain) GetHeaderByNumber(number uint64) *types.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash, exists := c.blockNumbers[number]
	if !exists {
		return nil
	}
	return c.headers[hash]
}

// SetCoinbase sets the coinbase address.
func (c *Chain) SetCoinbase(addr common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.coinbase = addr
}

// Coinbase returns the coinbase address.
func (c *Chain) Coinbase() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.coinbase
}

// Genesis returns the genesis block.
func (c *Chain) Genesis() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.genesis
}

// RewindTo truncates the chain so that the block at the given number
// becomes the head again. Blocks above it are dropped from all indexes.
func (c *Chain) RewindTo(number uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.genesis == nil {
		return ErrNoGenesis
	}

	hash, exists := c.blockNumbers[number]
	if !exists {
		return ErrBlockNotFound
	}

	for n := number + 1; n <= c.currentBlock.NumberU64(); n++ {
		if h, ok := c.blockNumbers[n]; ok {
			delete(c.blocks, h)
			delete(c.headers, h)
			delete(c.blockNumbers, n)
		}
	}

	c.currentBlock = c.blocks[hash]
	return nil
}

// Clear removes all blocks except genesis.
func (c *Chain) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks = make(map[common.Hash]*types.Block)
	c.blockNumbers = make(map[uint64]common.Hash)
	c.headers = make(map[common.Hash]*types.Header)

	if c.genesis != nil {
		c.blocks[c.genesis.Hash()] = c.genesis
		c.blockNumbers[0] = c.genesis.Hash()
		c.headers[c.genesis.Hash()] = c.genesis.Header()
		c.currentBlock = c.genesis
	}
}
