package httpimpl

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state"
	"github.com/niklaslong/zebra/stores/finalized/memory"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/niklaslong/zebra/util/health"
	"github.com/niklaslong/zebra/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	alice = test.NewKey(1)
	bob   = test.NewKey(2)
)

func newHTTP(t *testing.T) (*HTTP, []*model.Block) {
	t.Helper()

	ctx := context.Background()
	server := state.New(ulogger.TestLogger{}, test.CreateBaseTestSettings(), memory.New(ulogger.TestLogger{}))
	require.NoError(t, server.Init(ctx))

	genesis := test.Genesis(alice, 5000)
	spend := test.Spend([]model.OutPoint{test.OutPointOf(genesis.Transactions[0], 0)}, bob.Pay(3000), alice.Pay(2000))
	block1 := test.NextBlock(genesis, 0, bob, 5000, spend)

	for _, block := range []*model.Block{genesis, block1} {
		_, err := server.CommitBlock(ctx, block)
		require.NoError(t, err)
	}

	return New(ulogger.TestLogger{}, test.CreateBaseTestSettings(), server), []*model.Block{genesis, block1}
}

func get(t *testing.T, h *HTTP, path string, body interface{}) int {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if body != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), body), rec.Body.String())
	}

	return rec.Code
}

func post(t *testing.T, h *HTTP, path string, request interface{}, body interface{}) int {
	t.Helper()

	payload, err := json.Marshal(request)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if body != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), body), rec.Body.String())
	}

	return rec.Code
}

func TestHTTPSubmitBlock(t *testing.T) {
	h, blocks := newHTTP(t)

	block2 := test.NextBlock(blocks[1], 0, alice, 5000)

	var submitted map[string]string
	require.Equal(t, http.StatusOK, post(t, h, "/api/v1/block", submitBlockRequest{Height: 2, Hex: hex.EncodeToString(block2.Bytes())}, &submitted))
	assert.Equal(t, block2.Hash().String(), submitted["hash"])

	var tip tipResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/tip", &tip))
	assert.Equal(t, tipResponse{Height: 2, Hash: block2.Hash().String()}, tip)

	var failed errorResponse
	require.Equal(t, http.StatusConflict, post(t, h, "/api/v1/block", submitBlockRequest{Height: 2, Hex: hex.EncodeToString(block2.Bytes())}, &failed))
	assert.Equal(t, int32(errors.ERR_BLOCK_EXISTS), failed.Code)

	require.Equal(t, http.StatusBadRequest, post(t, h, "/api/v1/block", submitBlockRequest{Height: 3, Hex: "zz"}, &failed))

	block3 := test.NextBlock(block2, 0, alice, 5000)
	require.Equal(t, http.StatusUnprocessableEntity, post(t, h, "/api/v1/block", submitBlockRequest{Height: 5, Hex: hex.EncodeToString(block3.Bytes())}, &failed))
	assert.Equal(t, int32(errors.ERR_BLOCK_INVALID), failed.Code)

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/tip", &tip))
	assert.Equal(t, uint32(2), tip.Height)
}

func TestHTTPChainRoutes(t *testing.T) {
	h, blocks := newHTTP(t)

	var tip tipResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/tip", &tip))
	assert.Equal(t, tipResponse{Height: 1, Hash: blocks[1].Hash().String()}, tip)

	var locator []string
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/block_locator", &locator))
	assert.Equal(t, []string{blocks[1].Hash().String(), blocks[0].Hash().String()}, locator)

	var depth map[string]uint32
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/depth/"+blocks[0].Hash().String(), &depth))
	assert.Equal(t, uint32(1), depth["depth"])

	var block blockResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/block/"+blocks[1].Hash().String(), &block))
	assert.Equal(t, blocks[0].Hash().String(), block.PreviousHash)
	assert.Equal(t, uint64(2), block.TransactionCount)

	spend := blocks[1].Transactions[1]

	var tx txResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/tx/"+spend.TxID(), &tx))
	assert.Equal(t, txResponse{TxID: spend.TxID(), Height: 1, Hex: spend.String()}, tx)

	var utxo utxoResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/utxo/"+spend.TxID()+"/1", &utxo))
	assert.Equal(t, uint64(2000), utxo.Satoshis)
	assert.False(t, utxo.FromCoinbase)

	var failed errorResponse
	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/utxo/"+spend.TxID()+"/7?wait=5ms", &failed))
	assert.Equal(t, int32(http.StatusNotFound), failed.Status)

	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/block/"+strings.Repeat("0", 64), &failed))
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/depth/nothex", &failed))
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/utxo/"+spend.TxID()+"/1?wait=soon", &failed))
}

func TestHTTPUtxoWaitIsCapped(t *testing.T) {
	h, blocks := newHTTP(t)
	h.settings.State.MaxUtxoWait = 10 * time.Millisecond

	missing := blocks[1].Transactions[1].TxID() + "/7"

	start := time.Now()

	var failed errorResponse
	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/utxo/"+missing+"?wait=1h", &failed))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, failed.Err, "within 10ms")
}

func TestHTTPAddressRoutes(t *testing.T) {
	h, blocks := newHTTP(t)

	var balance map[string]interface{}
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/address/"+string(bob.Address)+"/balance", &balance))
	assert.Equal(t, float64(8000), balance["balance"])

	var utxos []addressUtxoResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/address/"+string(bob.Address)+"/utxos", &utxos))
	require.Len(t, utxos, 2)
	assert.Equal(t, addressUtxoResponse{TxID: blocks[1].Transactions[0].TxID(), Vout: 0, Satoshis: 5000, Height: 1, Index: 0}, utxos[0])
	assert.Equal(t, uint64(3000), utxos[1].Satoshis)

	var txIDs []addressTxResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/address/"+string(alice.Address)+"/txids", &txIDs))
	assert.Len(t, txIDs, 2)

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/address/"+string(alice.Address)+"/txids?from=1&to=1", &txIDs))
	require.Len(t, txIDs, 1)
	assert.Equal(t, blocks[1].Transactions[1].TxID(), txIDs[0].TxID)

	var failed errorResponse
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/address/"+string(alice.Address)+"/txids?from=x", &failed))
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	h, _ := newHTTP(t)

	assert.Equal(t, http.StatusOK, get(t, h, "/health", nil))
	assert.Equal(t, http.StatusOK, get(t, h, "/alive", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "state_commit_block")
}

func TestHTTPStart(t *testing.T) {
	h, _ := newHTTP(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())

	var g errgroup.Group

	g.Go(func() error {
		return h.Start(ctx, addr)
	})

	check := health.CheckHTTPServer("http://"+addr, "/health")

	require.Eventually(t, func() bool {
		status, _, err := check(ctx, false)
		return err == nil && status == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errors.NewInvalidArgumentError("bad hash"), http.StatusBadRequest},
		{errors.NewBlockNotFoundError("no block"), http.StatusNotFound},
		{errors.NewUtxoNotFoundError("no output"), http.StatusNotFound},
		{errors.NewServiceNotStartedError("not yet"), http.StatusServiceUnavailable},
		{errors.NewStorageUnavailableError("db down"), http.StatusServiceUnavailable},
		{errors.NewBlockExistsError("seen"), http.StatusConflict},
		{errors.NewTxInvalidDoubleSpendError("spent twice"), http.StatusUnprocessableEntity},
		{errors.NewStorageError("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusOf(tt.err), tt.err.Error())
	}
}
