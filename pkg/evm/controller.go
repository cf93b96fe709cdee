// Package evm implements the evm_* control method family: time travel,
// manual block production and state snapshots for the simulator.
package evm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// JSON-RPC error codes.
const (
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidInput   = -32602
	ErrCodeInternal       = -32603
)

// Supported method names.
const (
	MethodIncreaseTime          = "evm_increaseTime"
	MethodSetNextBlockTimestamp = "evm_setNextBlockTimestamp"
	MethodMine                  = "evm_mine"
	MethodMineMultiple          = "evm_mineMultiple"
	MethodRevert                = "evm_revert"
	MethodSnapshot              = "evm_snapshot"
)

// zeroQuantity is the wire-level success sentinel returned by the mining
// methods. It carries no numeric meaning.
const zeroQuantity = "0x0"

// Error is a typed RPC failure.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func methodNotFound(method string) *Error {
	return &Error{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("the method %s does not exist/is not available", method),
	}
}

func invalidInput(format string, args ...interface{}) *Error {
	return &Error{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}

func internalError(err error) *Error {
	return &Error{
		Code:    ErrCodeInternal,
		Message: err.Error(),
	}
}

// Node is the chain backend the controller drives. It is treated as an
// already-correct state machine: the controller validates inputs and
// sequences calls, the Node owns all persistent state (block history,
// time offset, snapshot stack).
type Node interface {
	// LatestBlock returns the current head block.
	LatestBlock() *types.Block

	// SetNextBlockTimestamp pins the timestamp of the next mined block.
	SetNextBlockTimestamp(timestamp uint64)

	// IncreaseTime adds seconds to the cumulative time offset applied to
	// all future block timestamps.
	IncreaseTime(seconds uint64)

	// TimeIncrement returns the cumulative time offset.
	TimeIncrement() uint64

	// MineEmptyBlock produces exactly one new block. A zero timestamp
	// lets the node pick the block time itself.
	MineEmptyBlock(timestamp uint64) error

	// TakeSnapshot checkpoints the node's entire state and returns the
	// new snapshot id.
	TakeSnapshot() uint64

	// RevertToSnapshot restores the state captured under id. Returns
	// false if the id is unknown or already invalidated.
	RevertToSnapshot(id uint64) bool
}

// Controller validates evm_* requests and sequences calls into the Node.
// It holds no state of its own; callers must serialize requests per node
// instance.
type Controller struct {
	node Node
}

// NewController creates a controller driving the given node.
func NewController(node Node) *Controller {
	return &Controller{node: node}
}

// ProcessRequest routes a method to its validate and action steps.
// Validation failures short-circuit before any Node call.
func (c *Controller) ProcessRequest(method string, params json.RawMessage) (interface{}, *Error) {
	switch method {
	case MethodIncreaseTime:
		return c.increaseTime(params)
	case MethodSetNextBlockTimestamp:
		return c.setNextBlockTimestamp(params)
	case MethodMine:
		return c.mine(params)
	case MethodMineMultiple:
		return c.mineMultiple(params)
	case MethodRevert:
		return c.revert(params)
	case MethodSnapshot:
		return c.snapshot(params)
	default:
		return nil, methodNotFound(method)
	}
}

// positional decodes raw params into an ordered argument list. Absent or
// null params decode to an empty list.
func positional(method string, params json.RawMessage) ([]interface{}, *Error) {
	if len(params) == 0 {
		return nil, nil
	}
	var args []interface{}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, invalidInput("%s: params must be a positional array", method)
	}
	return args, nil
}

// decodeUint accepts the two wire encodings for a quantity: a hex string
// or a JSON number. Negative and fractional numbers are rejected.
func decodeUint(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case string:
		return hexutil.DecodeUint64(n)
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, fmt.Errorf("not a non-negative integer: %v", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// evm_increaseTime adds seconds to the node's cumulative time offset and
// returns the new total. By wire convention the result is a decimal
// string, not a hex quantity.
func (c *Controller) increaseTime(params json.RawMessage) (interface{}, *Error) {
	args, errObj := positional(MethodIncreaseTime, params)
	if errObj != nil {
		return nil, errObj
	}
	if len(args) != 1 {
		return nil, invalidInput("%s: expected exactly one argument, got %d", MethodIncreaseTime, len(args))
	}
	seconds, err := decodeUint(args[0])
	if err != nil {
		return nil, invalidInput("%s: invalid seconds: %v", MethodIncreaseTime, err)
	}

	c.node.IncreaseTime(seconds)
	return strconv.FormatUint(c.node.TimeIncrement(), 10), nil
}

// evm_setNextBlockTimestamp pins the next mined block's timestamp. The
// timestamp must advance past the current head block.
func (c *Controller) setNextBlockTimestamp(params json.RawMessage) (interface{}, *Error) {
	args, errObj := positional(MethodSetNextBlockTimestamp, params)
	if errObj != nil {
		return nil, errObj
	}
	if len(args) != 1 {
		return nil, invalidInput("%s: expected exactly one argument, got %d", MethodSetNextBlockTimestamp, len(args))
	}
	timestamp, err := decodeUint(args[0])
	if err != nil {
		return nil, invalidInput("%s: invalid timestamp: %v", MethodSetNextBlockTimestamp, err)
	}

	head := c.node.LatestBlock().Time()
	if timestamp <= head {
		return nil, invalidInput("%s: timestamp %d must be greater than current block timestamp %d",
			MethodSetNextBlockTimestamp, timestamp, head)
	}

	c.node.SetNextBlockTimestamp(timestamp)
	return strconv.FormatUint(timestamp, 10), nil
}

// evm_mine produces exactly one new block. An omitted or zero timestamp
// lets the node pick the block time; a nonzero timestamp must advance
// past the current head block.
func (c *Controller) mine(params json.RawMessage) (interface{}, *Error) {
	args, errObj := positional(MethodMine, params)
	if errObj != nil {
		return nil, errObj
	}
	if len(args) > 1 {
		return nil, invalidInput("%s: expected at most one argument, got %d", MethodMine, len(args))
	}

	var timestamp uint64
	if len(args) == 1 {
		var err error
		timestamp, err = decodeUint(args[0])
		if err != nil {
			return nil, invalidInput("%s: invalid timestamp: %v", MethodMine, err)
		}
	}

	if timestamp != 0 {
		head := c.node.LatestBlock().Time()
		if timestamp <= head {
			return nil, invalidInput("%s: timestamp %d must be greater than current block timestamp %d",
				MethodMine, timestamp, head)
		}
	}

	if err := c.node.MineEmptyBlock(timestamp); err != nil {
		return nil, internalError(err)
	}
	return zeroQuantity, nil
}

// evm_mineMultiple produces iterations new blocks in order. Entry i of the
// optional timestamps list pins block i; remaining blocks use the node's
// own time. All preconditions are checked before the first block is
// mined, so a rejected batch mutates nothing.
func (c *Controller) mineMultiple(params json.RawMessage) (interface{}, *Error) {
	args, errObj := positional(MethodMineMultiple, params)
	if errObj != nil {
		return nil, errObj
	}
	if len(args) > 2 {
		return nil, invalidInput("%s: expected at most two arguments, got %d", MethodMineMultiple, len(args))
	}

	var iterations uint64
	if len(args) >= 1 {
		var err error
		iterations, err = decodeUint(args[0])
		if err != nil {
			return nil, invalidInput("%s: invalid iterations: %v", MethodMineMultiple, err)
		}
	}
	if iterations == 0 {
		return nil, invalidInput("%s: iterations must be greater than zero", MethodMineMultiple)
	}

	var timestamps []uint64
	if len(args) == 2 {
		raw, ok := args[1].([]interface{})
		if !ok {
			return nil, invalidInput("%s: timestamps must be an array", MethodMineMultiple)
		}
		timestamps = make([]uint64, len(raw))
		for i, v := range raw {
			ts, err := decodeUint(v)
			if err != nil {
				return nil, invalidInput("%s: invalid timestamp at index %d: %v", MethodMineMultiple, i, err)
			}
			timestamps[i] = ts
		}
	}

	if uint64(len(timestamps)) > iterations {
		return nil, invalidInput("%s: %d timestamps supplied for %d iterations",
			MethodMineMultiple, len(timestamps), iterations)
	}
	if len(timestamps) > 0 {
		head := c.node.LatestBlock().Time()
		if timestamps[0] <= head {
			return nil, invalidInput("%s: first timestamp %d must be greater than current block timestamp %d",
				MethodMineMultiple, timestamps[0], head)
		}
		for i := 1; i < len(timestamps); i++ {
			if timestamps[i] <= timestamps[i-1] {
				return nil, invalidInput("%s: timestamps must be strictly increasing: %d followed by %d",
					MethodMineMultiple, timestamps[i-1], timestamps[i])
			}
		}
	}

	for i := uint64(0); i < iterations; i++ {
		var timestamp uint64
		if i < uint64(len(timestamps)) {
			timestamp = timestamps[i]
		}
		if err := c.node.MineEmptyBlock(timestamp); err != nil {
			return nil, internalError(err)
		}
	}
	return zeroQuantity, nil
}

// evm_revert restores the state captured under the given snapshot id and
// reports whether the id was still valid.
func (c *Controller) revert(params json.RawMessage) (interface{}, *Error) {
	args, errObj := positional(MethodRevert, params)
	if errObj != nil {
		return nil, errObj
	}
	if len(args) != 1 {
		return nil, invalidInput("%s: expected exactly one argument, got %d", MethodRevert, len(args))
	}
	id, err := decodeUint(args[0])
	if err != nil {
		return nil, invalidInput("%s: invalid snapshot id: %v", MethodRevert, err)
	}

	return c.node.RevertToSnapshot(id), nil
}

// evm_snapshot checkpoints the node's entire state and returns the new
// snapshot id as a hex quantity.
func (c *Controller) snapshot(params json.RawMessage) (interface{}, *Error) {
	args, errObj := positional(MethodSnapshot, params)
	if errObj != nil {
		return nil, errObj
	}
	if len(args) != 0 {
		return nil, invalidInput("%s: expected no arguments, got %d", MethodSnapshot, len(args))
	}

	return hexutil.EncodeUint64(c.node.TakeSnapshot()), nil
}
