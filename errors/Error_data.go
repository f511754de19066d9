package errors

import (
	"encoding/json"
	"fmt"
)

// ErrDataI is an interface for error data that can be set, retrieved, and encoded.
type ErrDataI interface {
	EncodeErrorData() []byte
	Error() string
	GetData(key string) interface{}
	SetData(key string, value interface{})
}

// ErrData is a generic error data structure that implements the ErrDataI interface.
type ErrData map[string]interface{}

// Error returns a string representation of the error data.
func (e *ErrData) Error() string {
	return fmt.Sprintf(" %v", *e)
}

// SetData sets a key-value pair in the error data.
func (e *ErrData) SetData(key string, value interface{}) {
	if e == nil {
		return
	}

	(*e)[key] = value
}

// GetData retrieves the value associated with a key in the error data.
func (e *ErrData) GetData(key string) interface{} {
	if e == nil {
		return nil
	}

	return (*e)[key]
}

// EncodeErrorData encodes the error data to a byte slice using JSON encoding.
func (e *ErrData) EncodeErrorData() []byte {
	// marshal the data to a byte slice using the encoding/json package
	data, err := json.Marshal(e)
	if err != nil {
		// Note: Check if we should log this
		return []byte{}
	}

	return data
}

// GetErrorData retrieves error data based on the error code and unmarshals it from a byte slice.
func GetErrorData(code ERR, dataBytes []byte) (ErrDataI, error) {
	var errData ErrDataI

	switch code {
	case ERR_TX_INVALID_DOUBLE_SPEND:
		errData = &DoubleSpendErrData{}
		// unmarshall the data from the byte slice using the encoding/json package
		err := json.Unmarshal(dataBytes, errData)
		if err != nil {
			return errData, err
		}

	default:
		// get generic error data
		errData = &ErrData{}

		// unmarshall the data from the byte slice using the encoding/json package
		err := json.Unmarshal(dataBytes, errData)
		if err != nil {
			return errData, err
		}
	}

	return errData, nil
}

// DoubleSpendErrData identifies the output that was spent twice and the transaction that spent it first.
type DoubleSpendErrData struct {
	Hash         string `json:"hash"`
	Vout         uint32 `json:"vout"`
	SpendingTxID string `json:"spending_tx_id,omitempty"`
}

func (e *DoubleSpendErrData) Error() string {
	if e.SpendingTxID == "" {
		return fmt.Sprintf("%s:%d already spent", e.Hash, e.Vout)
	}

	return fmt.Sprintf("%s:%d already spent by %s", e.Hash, e.Vout, e.SpendingTxID)
}

func (e *DoubleSpendErrData) SetData(key string, value interface{}) {
	switch key {
	case "hash":
		e.Hash, _ = value.(string)
	case "vout":
		e.Vout, _ = value.(uint32)
	case "spending_tx_id":
		e.SpendingTxID, _ = value.(string)
	}
}

func (e *DoubleSpendErrData) GetData(key string) interface{} {
	switch key {
	case "hash":
		return e.Hash
	case "vout":
		return e.Vout
	case "spending_tx_id":
		return e.SpendingTxID
	}

	return nil
}

func (e *DoubleSpendErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

// NewTxDoubleSpendError returns an ERR_TX_INVALID_DOUBLE_SPEND error carrying DoubleSpendErrData.
func NewTxDoubleSpendError(data *DoubleSpendErrData, message string, params ...interface{}) error {
	err := New(ERR_TX_INVALID_DOUBLE_SPEND, message, params...)
	err.data = data

	return err
}
