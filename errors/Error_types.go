package errors

var (
	ErrInvalidArgument      = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrNotFound             = New(ERR_NOT_FOUND, "not found")
	ErrProcessing           = New(ERR_PROCESSING, "error processing")
	ErrConfiguration        = New(ERR_CONFIGURATION, "configuration error")
	ErrContextCanceled      = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrBlockNotFound        = New(ERR_BLOCK_NOT_FOUND, "block not found")
	ErrBlockInvalid         = New(ERR_BLOCK_INVALID, "block invalid")
	ErrBlockExists          = New(ERR_BLOCK_EXISTS, "block exists")
	ErrBlockParentNotFound  = New(ERR_BLOCK_PARENT_NOT_FOUND, "block parent not found")
	ErrTxNotFound           = New(ERR_TX_NOT_FOUND, "tx not found")
	ErrTxInvalid            = New(ERR_TX_INVALID, "tx invalid")
	ErrTxInvalidDoubleSpend = New(ERR_TX_INVALID_DOUBLE_SPEND, "tx invalid double spend")
	ErrTxMissingInput       = New(ERR_TX_MISSING_INPUT, "tx missing input")
	ErrServiceUnavailable   = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceNotStarted    = New(ERR_SERVICE_NOT_STARTED, "service not started")
	ErrServiceError         = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable   = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageError         = New(ERR_STORAGE_ERROR, "storage error")
	ErrUtxoNotFound         = New(ERR_UTXO_NOT_FOUND, "utxo not found")
	ErrSpent                = New(ERR_UTXO_SPENT, "utxo already spent")
	ErrStateInitialization  = New(ERR_STATE_INITIALIZATION, "error initializing state")
	ErrStateError           = New(ERR_STATE_ERROR, "error in state")
	ErrAmountRange          = New(ERR_AMOUNT_RANGE, "amount out of range")
	ErrStructural           = New(ERR_STRUCTURAL, "structural invariant violated")
)

// errors initialization functions

func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewBlockNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_NOT_FOUND, message, params...)
}
func NewBlockInvalidError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_INVALID, message, params...)
}
func NewBlockExistsError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_EXISTS, message, params...)
}
func NewBlockParentNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_PARENT_NOT_FOUND, message, params...)
}
func NewTxNotFoundError(message string, params ...interface{}) error {
	return New(ERR_TX_NOT_FOUND, message, params...)
}
func NewTxInvalidError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID, message, params...)
}
func NewTxInvalidDoubleSpendError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID_DOUBLE_SPEND, message, params...)
}
func NewTxMissingInputError(message string, params ...interface{}) error {
	return New(ERR_TX_MISSING_INPUT, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceNotStartedError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_NOT_STARTED, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewUtxoNotFoundError(message string, params ...interface{}) error {
	return New(ERR_UTXO_NOT_FOUND, message, params...)
}
func NewUtxoSpentError(message string, params ...interface{}) error {
	return New(ERR_UTXO_SPENT, message, params...)
}
func NewStateInitializationError(message string, params ...interface{}) error {
	return New(ERR_STATE_INITIALIZATION, message, params...)
}
func NewStateError(message string, params ...interface{}) error {
	return New(ERR_STATE_ERROR, message, params...)
}
func NewAmountRangeError(message string, params ...interface{}) error {
	return New(ERR_AMOUNT_RANGE, message, params...)
}

// NewStructuralError builds the value used to abort on an apply/revert desynchronization.
// Callers panic with it; it is never returned.
func NewStructuralError(message string, params ...interface{}) *Error {
	return New(ERR_STRUCTURAL, message, params...)
}
