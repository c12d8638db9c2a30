package errno

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the API layer.
type Kind int

const (
	// KindValidation malformed input shape (bad id, bad hash, empty field)
	KindValidation Kind = iota + 1
	// KindClient referenced entity does not exist or is not owned by the caller
	KindClient
	// KindConflict current aggregate state forbids the transition
	KindConflict
	// KindInternal invariant violation or infrastructure failure, operators only
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindClient:
		return "client"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Errno defines the error code logic
type Errno struct {
	Kind    Kind
	Code    int
	Name    string
	Message string

	cause error
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Errno) Unwrap() error {
	return e.cause
}

// Is matches by Name so copies made by WithMessage/Wrap still match the base value.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	if !ok {
		return false
	}
	return e.Name == t.Name
}

// WithMessage returns a copy carrying a more specific message
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.Message = msg
	return &c
}

// Wrap returns a copy carrying the underlying cause
func (e *Errno) Wrap(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

func newErrno(kind Kind, code int, name, message string) *Errno {
	return &Errno{Kind: kind, Code: code, Name: name, Message: message}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed *Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	return InternalServerError.Code, err.Error()
}

// KindOf reports the category of err; anything that is not an *Errno is internal.
func KindOf(err error) Kind {
	var typed *Errno
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// NameOf returns the stable machine-readable name of err.
func NameOf(err error) string {
	var typed *Errno
	if errors.As(err, &typed) {
		return typed.Name
	}
	return InternalServerError.Name
}

// HTTPStatus maps the error category to an HTTP status code
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindClient:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsUserFacing reports whether the message of err may be shown to end users.
func IsUserFacing(err error) bool {
	return KindOf(err) != KindInternal
}

// Common Errors
var (
	OK                  = &Errno{Code: 0, Name: "OK", Message: "Success"}
	InternalServerError = newErrno(KindInternal, 10001, "InternalServerError", "Internal server error")
	ErrBind             = newErrno(KindValidation, 10002, "InvalidRequest", "Error occurred while binding the request body to the struct")
	ErrDatabase         = newErrno(KindInternal, 10004, "DatabaseError", "Database error")
)

// Validation Errors (20000+)
var (
	ErrInvalidID              = newErrno(KindValidation, 20001, "InvalidID", "id must be a UUID")
	ErrInvalidTransactionHash = newErrno(KindValidation, 20002, "InvalidTransactionHash", "transaction hash must match 0x followed by one or more hexadecimal digits")
	ErrUnknownAggregateKind   = newErrno(KindValidation, 20003, "UnknownAggregateKind", "unknown aggregate kind")
	ErrRefundNotSupported     = newErrno(KindValidation, 20004, "RefundNotSupported", "only product orders can be refunded")
)

// Client Errors (30000+)
var (
	ErrSellerNotFound      = newErrno(KindClient, 30101, "SellerNotFound", "seller does not exist")
	ErrBuyerNotFound       = newErrno(KindClient, 30102, "BuyerNotFound", "buyer does not exist")
	ErrMarketplaceNotFound = newErrno(KindClient, 30201, "MarketplaceNotFound", "marketplace does not exist")
	ErrOrderNotFound       = newErrno(KindClient, 30202, "OrderNotFound", "order does not exist")
	ErrPayoutNotFound      = newErrno(KindClient, 30203, "PayoutNotFound", "payout does not exist")
	ErrScopeNotFound       = newErrno(KindClient, 30301, "BlockchainMarketplaceNotFound", "blockchain marketplace does not exist")
)

// Conflict Errors (40000+)
var (
	ErrAlreadyConfirmed       = newErrno(KindConflict, 40001, "AlreadyConfirmed", "aggregate was confirmed")
	ErrAlreadyCancelled       = newErrno(KindConflict, 40002, "AlreadyCancelled", "aggregate was cancelled")
	ErrAlreadyRefunded        = newErrno(KindConflict, 40003, "AlreadyRefunded", "aggregate was refunded")
	ErrHasPendingTransaction  = newErrno(KindConflict, 40004, "HasPendingTransaction", "aggregate has pending transaction")
	ErrTransactionHashUsed    = newErrno(KindConflict, 40005, "TransactionHashAlreadyUsed", "transaction hash was already attached to this aggregate")
	ErrNotConfirmed           = newErrno(KindConflict, 40006, "NotConfirmed", "aggregate is not confirmed")
	ErrCancelPendingForbidden = newErrno(KindConflict, 40007, "CannotCancelWithPendingTransaction", "aggregate with pending transaction cannot be cancelled")
)

// Invariant violations (50000+). Data says something provably impossible.
var (
	ErrDraftMustNotHaveTransactions                = newErrno(KindInternal, 50001, "DraftMustNotHaveTransactions", "draft aggregate must not have transactions")
	ErrPendingMustHaveTransaction                  = newErrno(KindInternal, 50002, "PendingNoTransaction", "pending aggregate must have at least one transaction")
	ErrPendingMustNotHaveConfirmedTransaction      = newErrno(KindInternal, 50003, "PendingMustNotHaveConfirmedTransaction", "pending aggregate must not have a confirmed transaction")
	ErrPendingMustHaveAtMostOneOutstanding         = newErrno(KindInternal, 50004, "PendingMustHaveAtMostOneOutstandingTransaction", "pending aggregate must have at most one outstanding transaction")
	ErrConfirmedMustHaveOneConfirmedTransaction    = newErrno(KindInternal, 50005, "ConfirmedMustHaveExactlyOneConfirmedTransaction", "confirmed aggregate must have exactly one confirmed transaction")
	ErrConfirmedMustNotHaveOutstandingTransaction  = newErrno(KindInternal, 50006, "ConfirmedMustNotHaveOutstandingTransaction", "confirmed aggregate must not have an outstanding transaction")
	ErrConfirmedTransactionMustHaveSenderAddress   = newErrno(KindInternal, 50007, "ConfirmedTransactionMustHaveSenderAddress", "confirmed transaction must have a sender address")
	ErrConfirmedTransactionMustHaveContractAddress = newErrno(KindInternal, 50008, "ConfirmedTransactionMustHaveSmartContractAddress", "confirmed transaction must have a smart contract address")
	ErrConfirmedTransactionMustHaveGas             = newErrno(KindInternal, 50009, "ConfirmedTransactionMustHaveGas", "confirmed transaction must have gas greater than zero")
	ErrConfirmedTransactionMustHaveFee             = newErrno(KindInternal, 50010, "ConfirmedTransactionMustHaveTransactionFee", "confirmed transaction must have a transaction fee")
	ErrCancelledMustNotHaveConfirmedTransaction    = newErrno(KindInternal, 50011, "CancelledMustNotHaveConfirmedTransaction", "cancelled aggregate must not have a confirmed transaction")
	ErrCancelledMustNotHaveOutstandingTransaction  = newErrno(KindInternal, 50012, "CancelledMustNotHaveOutstandingTransaction", "cancelled aggregate must not have an outstanding transaction")
	ErrRefundedMustHaveOneConfirmedTransaction     = newErrno(KindInternal, 50013, "RefundedMustHaveExactlyOneConfirmedTransaction", "refunded aggregate must have exactly one confirmed transaction")
	ErrTransactionConfirmedAndFailed               = newErrno(KindInternal, 50014, "TransactionConfirmedAndFailed", "transaction cannot be both confirmed and failed")
	ErrConflictingTerminalTimestamps               = newErrno(KindInternal, 50015, "ConflictingAggregateTimestamps", "aggregate timestamps describe an impossible lifecycle")
	ErrTerminalTransactionIsImmutable              = newErrno(KindInternal, 50016, "TerminalTransactionIsImmutable", "terminal transaction cannot be updated")
	ErrConfirmedMarketplaceMustHaveContractAddress = newErrno(KindInternal, 50017, "ConfirmedMarketplaceMustHaveSmartContractAddress", "confirmed marketplace must have a smart contract address")
	ErrConfirmedMarketplaceMustHaveOwnerWallet     = newErrno(KindInternal, 50018, "ConfirmedMarketplaceMustHaveOwnerWalletAddress", "confirmed marketplace must have an owner wallet address")
)

// Reconciliation failures (60000+)
var (
	ErrBlockchainClientNotFound       = newErrno(KindInternal, 60001, "BlockchainClientNotFound", "no blockchain client for chain")
	ErrContractClientNotFound         = newErrno(KindInternal, 60002, "MarketplaceContractClientNotFound", "no marketplace contract client for chain")
	ErrUnableToResolveContractAddress = newErrno(KindInternal, 60003, "UnableToResolveContractAddress", "unable to resolve contract address from blockchain marketplace")
	ErrReceiptFetchFailed             = newErrno(KindInternal, 60004, "ReceiptFetchFailed", "unable to fetch transactions from blockchain")
	ErrContractResolutionFailed       = newErrno(KindInternal, 60005, "ContractResolutionFailed", "contract address lookup failed")
)
