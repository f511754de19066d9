package httpimpl

import (
	"context"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/labstack/echo/v4"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/services/state"
)

const defaultUtxoWait = time.Second

type tipResponse struct {
	Height uint32 `json:"height"`
	Hash   string `json:"hash"`
}

type blockResponse struct {
	Hash             string `json:"hash"`
	PreviousHash     string `json:"previousblockhash"`
	Height           uint32 `json:"height"`
	TransactionCount uint64 `json:"txCount"`
	Hex              string `json:"hex"`
}

type txResponse struct {
	TxID   string `json:"txid"`
	Height uint32 `json:"height"`
	Hex    string `json:"hex"`
}

type utxoResponse struct {
	Satoshis     uint64 `json:"satoshis"`
	Height       uint32 `json:"height"`
	FromCoinbase bool   `json:"coinbase"`
	Script       string `json:"script"`
}

type addressUtxoResponse struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Satoshis uint64 `json:"satoshis"`
	Height   uint32 `json:"height"`
	Index    uint32 `json:"index"`
}

type addressTxResponse struct {
	TxID   string `json:"txid"`
	Height uint32 `json:"height"`
	Index  uint32 `json:"index"`
}

type submitBlockRequest struct {
	Height uint32 `json:"height"`
	Hex    string `json:"hex"`
}

func hashParam(c echo.Context) (chainhash.Hash, error) {
	hash, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		return chainhash.Hash{}, errors.NewInvalidArgumentError("invalid hash %q", c.Param("hash"), err)
	}

	return *hash, nil
}

func heightQuery(c echo.Context, name string, defaultValue uint32) (uint32, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue, nil
	}

	height, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.NewInvalidArgumentError("invalid %s height %q", name, raw, err)
	}

	return uint32(height), nil
}

func (h *HTTP) fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("[State_http][%s] %v", c.Path(), err)
	}

	return sendError(c, status, err)
}

// SubmitBlock commits a serialized block at the given height.
func (h *HTTP) SubmitBlock(c echo.Context) error {
	var request submitBlockRequest
	if err := c.Bind(&request); err != nil {
		return h.fail(c, errors.NewInvalidArgumentError("invalid request body", err))
	}

	blockBytes, err := hex.DecodeString(request.Hex)
	if err != nil {
		return h.fail(c, errors.NewInvalidArgumentError("invalid block hex", err))
	}

	block, err := model.NewBlockFromBytes(blockBytes, request.Height)
	if err != nil {
		return h.fail(c, err)
	}

	hash, err := h.client.CommitBlock(c.Request().Context(), block)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"hash": hash.String()})
}

func (h *HTTP) GetTip(c echo.Context) error {
	tip, err := h.client.Tip(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}

	if tip.IsNone() {
		return h.fail(c, errors.NewNotFoundError("chain is empty"))
	}

	t := tip.UnwrapOr(model.ChainTip{})

	return c.JSON(http.StatusOK, tipResponse{Height: t.Height, Hash: t.Hash.String()})
}

func (h *HTTP) GetBlockLocator(c echo.Context) error {
	hashes, err := h.client.BlockLocator(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}

	locator := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		locator = append(locator, hash.String())
	}

	return c.JSON(http.StatusOK, locator)
}

func (h *HTTP) GetDepth(c echo.Context) error {
	hash, err := hashParam(c)
	if err != nil {
		return h.fail(c, err)
	}

	depth, err := h.client.Depth(c.Request().Context(), hash)
	if err != nil {
		return h.fail(c, err)
	}

	if depth.IsNone() {
		return h.fail(c, errors.NewBlockNotFoundError("block %s is not in the best chain", hash))
	}

	return c.JSON(http.StatusOK, map[string]uint32{"depth": depth.UnwrapOr(0)})
}

func (h *HTTP) GetBlock(c echo.Context) error {
	hash, err := hashParam(c)
	if err != nil {
		return h.fail(c, err)
	}

	found, err := h.client.Block(c.Request().Context(), hash)
	if err != nil {
		return h.fail(c, err)
	}

	if found.IsNone() {
		return h.fail(c, errors.NewBlockNotFoundError("block %s is not in the best chain", hash))
	}

	block := found.UnwrapOr(nil)

	return c.JSON(http.StatusOK, blockResponse{
		Hash:             block.Hash().String(),
		PreviousHash:     block.PrevHash().String(),
		Height:           block.Height,
		TransactionCount: block.TransactionCount(),
		Hex:              hex.EncodeToString(block.Bytes()),
	})
}

func (h *HTTP) GetTransaction(c echo.Context) error {
	hash, err := hashParam(c)
	if err != nil {
		return h.fail(c, err)
	}

	mined, err := h.client.MinedTransaction(c.Request().Context(), hash)
	if err != nil {
		return h.fail(c, err)
	}

	if mined.IsNone() {
		return h.fail(c, errors.NewTxNotFoundError("transaction %s is not in the best chain", hash))
	}

	tx := mined.UnwrapOr(state.MinedTx{})

	return c.JSON(http.StatusOK, txResponse{TxID: tx.Tx.TxID(), Height: tx.Height, Hex: tx.Tx.String()})
}

// GetUtxo waits up to the wait query duration, capped by state_maxUtxoWait, for a block
// creating the output.
func (h *HTTP) GetUtxo(c echo.Context) error {
	hash, err := hashParam(c)
	if err != nil {
		return h.fail(c, err)
	}

	vout, err := strconv.ParseUint(c.Param("vout"), 10, 32)
	if err != nil {
		return h.fail(c, errors.NewInvalidArgumentError("invalid output index %q", c.Param("vout"), err))
	}

	wait := defaultUtxoWait

	if raw := c.QueryParam("wait"); raw != "" {
		if wait, err = time.ParseDuration(raw); err != nil {
			return h.fail(c, errors.NewInvalidArgumentError("invalid wait %q", raw, err))
		}
	}

	if limit := h.settings.State.MaxUtxoWait; limit > 0 && wait > limit {
		wait = limit
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), wait)
	defer cancel()

	outPoint := model.OutPoint{Hash: hash, Index: uint32(vout)}

	utxo, err := h.client.AwaitUtxo(ctx, outPoint)
	if err != nil {
		if errors.Is(err, errors.ErrContextCanceled) {
			return h.fail(c, errors.NewUtxoNotFoundError("output %s was not created within %s", outPoint, wait))
		}

		return h.fail(c, err)
	}

	response := utxoResponse{
		Satoshis:     utxo.Satoshis(),
		Height:       utxo.Height,
		FromCoinbase: utxo.FromCoinbase,
	}

	if utxo.Output != nil && utxo.Output.LockingScript != nil {
		response.Script = utxo.Output.LockingScript.String()
	}

	return c.JSON(http.StatusOK, response)
}

func (h *HTTP) GetAddressBalance(c echo.Context) error {
	addr := model.Address(c.Param("address"))

	balance, err := h.client.AddressBalance(c.Request().Context(), []model.Address{addr})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"address": addr, "balance": balance.Int64()})
}

func (h *HTTP) GetAddressUtxos(c echo.Context) error {
	utxos, err := h.client.AddressUtxos(c.Request().Context(), []model.Address{model.Address(c.Param("address"))})
	if err != nil {
		return h.fail(c, err)
	}

	response := make([]addressUtxoResponse, 0, len(utxos))

	for _, utxo := range utxos {
		response = append(response, addressUtxoResponse{
			TxID:     utxo.OutPoint.Hash.String(),
			Vout:     utxo.OutPoint.Index,
			Satoshis: utxo.Output.Satoshis,
			Height:   utxo.Location.Height,
			Index:    utxo.Location.Index,
		})
	}

	return c.JSON(http.StatusOK, response)
}

func (h *HTTP) GetAddressTxIDs(c echo.Context) error {
	from, err := heightQuery(c, "from", 0)
	if err != nil {
		return h.fail(c, err)
	}

	to, err := heightQuery(c, "to", math.MaxUint32)
	if err != nil {
		return h.fail(c, err)
	}

	txIDs, err := h.client.TransactionIDsByAddresses(c.Request().Context(), []model.Address{model.Address(c.Param("address"))}, from, to)
	if err != nil {
		return h.fail(c, err)
	}

	response := make([]addressTxResponse, 0, len(txIDs))

	for _, tx := range txIDs {
		response = append(response, addressTxResponse{
			TxID:   tx.TxID.String(),
			Height: tx.Location.Height,
			Index:  tx.Location.Index,
		})
	}

	return c.JSON(http.StatusOK, response)
}
