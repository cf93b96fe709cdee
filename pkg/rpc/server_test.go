package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/simnode-go/pkg/evm"
	"github.com/stable-net/simnode-go/pkg/node"
)

func createGenesisBlock() *types.Block {
	header := &types.Header{
		ParentHash: common.Hash{},
		Number:     big.NewInt(0),
		Time:       uint64(1700000000),
		GasLimit:   30000000,
		Difficulty: big.NewInt(1),
		Coinbase:   common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
	}
	hasher := trie.NewStackTrie(nil)
	return types.NewBlock(header, nil, nil, nil, hasher)
}

func setupServer(t *testing.T) (*Server, *node.Node) {
	n, err := node.New(big.NewInt(31337), createGenesisBlock(), zerolog.Nop())
	require.NoError(t, err)

	server := NewServer(evm.NewController(n), zerolog.Nop())
	return server, n
}

func makeRequest(t *testing.T, server *Server, method string, params interface{}) *httptest.ResponseRecorder {
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

type jsonrpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) *jsonrpcResponse {
	var resp jsonrpcResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return &resp
}

func resultString(t *testing.T, resp *jsonrpcResponse) string {
	var s string
	err := json.Unmarshal(resp.Result, &s)
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	server, _ := setupServer(t)
	require.NotNil(t, server)
}

func TestServer_ParseError(t *testing.T) {
	server, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestServer_MethodNotFound(t *testing.T) {
	server, _ := setupServer(t)

	w := makeRequest(t, server, "evm_bogus", []interface{}{})
	require.Equal(t, http.StatusOK, w.Code)

	resp := parseResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, evm.ErrCodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "evm_bogus")
}

func TestServer_evm_increaseTime(t *testing.T) {
	server, _ := setupServer(t)

	w := makeRequest(t, server, "evm_increaseTime", []interface{}{5})
	resp := parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, "5", resultString(t, resp))

	w = makeRequest(t, server, "evm_increaseTime", []interface{}{10})
	resp = parseResponse(t, w)
	require.Nil(t, resp.Error)

	// Decimal string of the cumulative offset, not hex.
	assert.Equal(t, "15", resultString(t, resp))
}

func TestServer_evm_increaseTime_InvalidParams(t *testing.T) {
	server, _ := setupServer(t)

	w := makeRequest(t, server, "evm_increaseTime", []interface{}{})
	resp := parseResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, evm.ErrCodeInvalidInput, resp.Error.Code)
}

func TestServer_evm_setNextBlockTimestamp(t *testing.T) {
	server, n := setupServer(t)

	w := makeRequest(t, server, "evm_setNextBlockTimestamp", []interface{}{1700000100})
	resp := parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, "1700000100", resultString(t, resp))

	// The next mined block carries the pinned timestamp.
	w = makeRequest(t, server, "evm_mine", []interface{}{})
	resp = parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(1700000100), n.LatestBlock().Time())
}

func TestServer_evm_setNextBlockTimestamp_BehindHead(t *testing.T) {
	server, _ := setupServer(t)

	w := makeRequest(t, server, "evm_setNextBlockTimestamp", []interface{}{1700000000})
	resp := parseResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, evm.ErrCodeInvalidInput, resp.Error.Code)
}

func TestServer_evm_mine(t *testing.T) {
	server, n := setupServer(t)

	w := makeRequest(t, server, "evm_mine", []interface{}{})
	resp := parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x0", resultString(t, resp))
	assert.Equal(t, uint64(1), n.LatestBlock().NumberU64())
}

func TestServer_evm_mine_WithTimestamp(t *testing.T) {
	server, n := setupServer(t)

	w := makeRequest(t, server, "evm_mine", []interface{}{1700000300})
	resp := parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(1700000300), n.LatestBlock().Time())
}

func TestServer_evm_mineMultiple(t *testing.T) {
	server, n := setupServer(t)

	params := []interface{}{4, []uint64{1700000010, 1700000020}}
	w := makeRequest(t, server, "evm_mineMultiple", params)
	resp := parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x0", resultString(t, resp))
	assert.Equal(t, uint64(4), n.LatestBlock().NumberU64())

	b1, err := n.Chain().BlockByNumber(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000010), b1.Time())
	b2, err := n.Chain().BlockByNumber(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000020), b2.Time())

	// Unpinned tail blocks still advance monotonically.
	b3, err := n.Chain().BlockByNumber(3)
	require.NoError(t, err)
	assert.Greater(t, b3.Time(), b2.Time())
}

func TestServer_evm_mineMultiple_Invalid(t *testing.T) {
	server, n := setupServer(t)

	w := makeRequest(t, server, "evm_mineMultiple", []interface{}{2, []uint64{1700000020, 1700000010}})
	resp := parseResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, evm.ErrCodeInvalidInput, resp.Error.Code)

	// Whole batch rejected before any block was issued.
	assert.Equal(t, uint64(0), n.LatestBlock().NumberU64())
}

func TestServer_evm_snapshot_revert(t *testing.T) {
	server, n := setupServer(t)

	w := makeRequest(t, server, "evm_snapshot", []interface{}{})
	resp := parseResponse(t, w)
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x1", resultString(t, resp))

	makeRequest(t, server, "evm_mine", []interface{}{})
	makeRequest(t, server, "evm_mine", []interface{}{})
	assert.Equal(t, uint64(2), n.LatestBlock().NumberU64())

	w = makeRequest(t, server, "evm_revert", []interface{}{"0x1"})
	resp = parseResponse(t, w)
	require.Nil(t, resp.Error)

	var ok bool
	require.NoError(t, json.Unmarshal(resp.Result, &ok))
	assert.True(t, ok)
	assert.Equal(t, uint64(0), n.LatestBlock().NumberU64())

	// The id was consumed by the revert.
	w = makeRequest(t, server, "evm_revert", []interface{}{"0x1"})
	resp = parseResponse(t, w)
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &ok))
	assert.False(t, ok)
}
