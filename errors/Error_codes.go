package errors

import "strconv"

// ERR is the numeric error code carried by every *Error.
// Codes are grouped in ranges of ten: 10-19 block, 30-49 transaction, 50-59 service,
// 60-69 storage, 70-79 utxo, 100-109 state.
type ERR int32

//nolint:revive,stylecheck // upper case names are kept for readability in logs
const (
	ERR_UNKNOWN          ERR = 0
	ERR_INVALID_ARGUMENT ERR = 1
	ERR_NOT_FOUND        ERR = 3
	ERR_PROCESSING       ERR = 4
	ERR_CONFIGURATION    ERR = 5
	ERR_CONTEXT_CANCELED ERR = 7

	ERR_BLOCK_NOT_FOUND        ERR = 10
	ERR_BLOCK_INVALID          ERR = 11
	ERR_BLOCK_EXISTS           ERR = 12
	ERR_BLOCK_PARENT_NOT_FOUND ERR = 14

	ERR_TX_NOT_FOUND            ERR = 30
	ERR_TX_INVALID              ERR = 31
	ERR_TX_INVALID_DOUBLE_SPEND ERR = 32
	ERR_TX_MISSING_INPUT        ERR = 33

	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_NOT_STARTED ERR = 51
	ERR_SERVICE_ERROR       ERR = 52

	ERR_STORAGE_UNAVAILABLE ERR = 60
	ERR_STORAGE_ERROR       ERR = 62

	ERR_UTXO_NOT_FOUND ERR = 70
	ERR_UTXO_SPENT     ERR = 71

	ERR_STATE_INITIALIZATION ERR = 100
	ERR_STATE_ERROR          ERR = 101
	ERR_AMOUNT_RANGE         ERR = 102
	ERR_STRUCTURAL           ERR = 103
)

//nolint:revive,stylecheck
var ERR_name = map[int32]string{
	0:   "UNKNOWN",
	1:   "INVALID_ARGUMENT",
	3:   "NOT_FOUND",
	4:   "PROCESSING",
	5:   "CONFIGURATION",
	7:   "CONTEXT_CANCELED",
	10:  "BLOCK_NOT_FOUND",
	11:  "BLOCK_INVALID",
	12:  "BLOCK_EXISTS",
	14:  "BLOCK_PARENT_NOT_FOUND",
	30:  "TX_NOT_FOUND",
	31:  "TX_INVALID",
	32:  "TX_INVALID_DOUBLE_SPEND",
	33:  "TX_MISSING_INPUT",
	50:  "SERVICE_UNAVAILABLE",
	51:  "SERVICE_NOT_STARTED",
	52:  "SERVICE_ERROR",
	60:  "STORAGE_UNAVAILABLE",
	62:  "STORAGE_ERROR",
	70:  "UTXO_NOT_FOUND",
	71:  "UTXO_SPENT",
	100: "STATE_INITIALIZATION",
	101: "STATE_ERROR",
	102: "AMOUNT_RANGE",
	103: "STRUCTURAL",
}

//nolint:revive,stylecheck
var ERR_value = func() map[string]int32 {
	m := make(map[string]int32, len(ERR_name))
	for k, v := range ERR_name {
		m[v] = k
	}

	return m
}()

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return "ERR(" + strconv.Itoa(int(x)) + ")"
}

// Enum returns a pointer to a copy of x.
func (x ERR) Enum() *ERR {
	p := new(ERR)
	*p = x

	return p
}
