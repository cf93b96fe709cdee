// Package node assembles the simulator backend: chain, clock, miner and
// snapshot bookkeeping behind the capability interface the RPC control
// module drives.
package node

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/stable-net/simnode-go/pkg/blockchain"
	"github.com/stable-net/simnode-go/pkg/clock"
	"github.com/stable-net/simnode-go/pkg/miner"
	"github.com/stable-net/simnode-go/pkg/snapshot"
)

// Node owns the chain state, the simulated clock and the snapshot stack.
type Node struct {
	chain     *blockchain.Chain
	clock     *clock.Clock
	miner     *miner.EmptyBlockMiner
	snapshots *snapshot.Manager

	log zerolog.Logger
}

// New creates a node with the given genesis block installed.
func New(chainID *big.Int, genesis *types.Block, log zerolog.Logger) (*Node, error) {
	chain := blockchain.NewChain(chainID)
	if err := chain.SetGenesis(genesis); err != nil {
		return nil, err
	}

	clk := clock.New()

	return &Node{
		chain:     chain,
		clock:     clk,
		miner:     miner.NewEmptyBlockMiner(chain, clk),
		snapshots: snapshot.NewManager(chain, clk),
		log:       log.With().Str("component", "node").Logger(),
	}, nil
}

// Chain returns the underlying chain.
func (n *Node) Chain() *blockchain.Chain {
	return n.chain
}

// Clock returns the simulated clock.
func (n *Node) Clock() *clock.Clock {
	return n.clock
}

// Miner returns the block producer.
func (n *Node) Miner() *miner.EmptyBlockMiner {
	return n.miner
}

// Snapshots returns the snapshot manager.
func (n *Node) Snapshots() *snapshot.Manager {
	return n.snapshots
}

// LatestBlock returns the current head block.
func (n *Node) LatestBlock() *types.Block {
	return n.chain.CurrentBlock()
}

// SetNextBlockTimestamp pins the timestamp of the next mined block.
func (n *Node) SetNextBlockTimestamp(timestamp uint64) {
	n.clock.SetNextBlockTimestamp(timestamp)
	n.log.Debug().Uint64("timestamp", timestamp).Msg("pinned next block timestamp")
}

// IncreaseTime adds seconds to the cumulative time offset.
func (n *Node) IncreaseTime(seconds uint64) {
	n.clock.Advance(seconds)
	n.log.Debug().Uint64("seconds", seconds).Uint64("offset", n.clock.Offset()).Msg("advanced clock")
}

// TimeIncrement returns the cumulative time offset.
func (n *Node) TimeIncrement() uint64 {
	return n.clock.Offset()
}

// MineEmptyBlock produces one block. A zero timestamp lets the miner
// resolve the block time from the pin or the clock.
func (n *Node) MineEmptyBlock(timestamp uint64) error {
	block, err := n.miner.MineEmptyBlock(timestamp)
	if err != nil {
		return err
	}

	n.log.Debug().
		Uint64("number", block.NumberU64()).
		Uint64("timestamp", block.Time()).
		Msg("mined block")
	return nil
}

// TakeSnapshot checkpoints the node state and returns the snapshot id.
func (n *Node) TakeSnapshot() uint64 {
	id := n.snapshots.Take()
	n.log.Debug().Uint64("id", id).Uint64("block", n.chain.BlockNumber()).Msg("took snapshot")
	return id
}

// RevertToSnapshot restores the state captured under id.
func (n *Node) RevertToSnapshot(id uint64) bool {
	ok := n.snapshots.Revert(id)
	n.log.Debug().Uint64("id", id).Bool("ok", ok).Msg("reverted to snapshot")
	return ok
}
