// Package miner provides block production for the simulator.
package miner

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/stable-net/simnode-go/pkg/blockchain"
	"github.com/stable-net/simnode-go/pkg/clock"
)

// Common errors.
var (
	ErrAlreadyRunning = errors.New("miner already running")
	ErrNotRunning     = errors.New("miner not running")
)

// DefaultGasLimit is the gas limit stamped on produced blocks.
const DefaultGasLimit = uint64(30000000)

// EmptyBlockMiner produces empty blocks on the chain, resolving each
// block's timestamp against the simulated clock.
type EmptyBlockMiner struct {
	chain *blockchain.Chain
	clock *clock.Clock

	gasLimit uint64

	interval time.Duration
	running  bool
	stopCh   chan struct{}

	mu sync.Mutex
}

// NewEmptyBlockMiner creates a miner over the given chain and clock.
func NewEmptyBlockMiner(chain *blockchain.Chain, clk *clock.Clock) *EmptyBlockMiner {
	return &EmptyBlockMiner{
		chain:    chain,
		clock:    clk,
		gasLimit: DefaultGasLimit,
		interval: time.Second,
	}
}

// MineEmptyBlock produces one block. Timestamp resolution order: the
// explicit nonzero argument, else a pinned next-block timestamp, else the
// clock's virtual now clamped to strictly after the parent.
func (m *EmptyBlockMiner) MineEmptyBlock(timestamp uint64) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineBlock(timestamp)
}

func (m *EmptyBlockMiner) mineBlock(timestamp uint64) (*types.Block, error) {
	parent := m.chain.CurrentBlock()
	if parent == nil {
		return nil, blockchain.ErrNoGenesis
	}

	ts := timestamp
	if ts == 0 {
		ts = m.clock.ConsumeNextBlockTimestamp()
	}
	if ts == 0 {
		ts = m.clock.Now()
		if ts <= parent.Time() {
			ts = parent.Time() + 1
		}
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number(), big.NewInt(1)),
		Time:       ts,
		GasLimit:   m.gasLimit,
		Difficulty: big.NewInt(1),
		Coinbase:   m.chain.Coinbase(),
		BaseFee:    big.NewInt(1e9),
	}

	hasher := trie.NewStackTrie(nil)
	block := types.NewBlock(header, nil, nil, nil, hasher)

	if err := m.chain.AddBlock(block); err != nil {
		return nil, err
	}

	return block, nil
}

// SetGasLimit sets the gas limit for new blocks.
func (m *EmptyBlockMiner) SetGasLimit(gasLimit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasLimit = gasLimit
}

// SetInterval sets the interval for interval mining.
func (m *EmptyBlockMiner) SetInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

// Interval returns the current interval.
func (m *EmptyBlockMiner) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Start starts the interval mining loop.
func (m *EmptyBlockMiner) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.stopCh = make(chan struct{})
	interval := m.interval
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.runIntervalMining(interval, stopCh)
	return nil
}

// Stop stops the interval mining loop.
func (m *EmptyBlockMiner) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}
	close(m.stopCh)
	m.running = false
	return nil
}

// runIntervalMining mines a block every interval until stopped.
func (m *EmptyBlockMiner) runIntervalMining(interval time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.MineEmptyBlock(0)
		}
	}
}
