package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno.
// 经 fmt.Errorf("%w: ...") 包装过的 Errno 也要解出原始错误码,
// 否则附带上下文的业务错误会退化成 InternalServerError。
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// IsValidation 判断是否属于参数/校验类错误 (20xxx)。
// 这类错误直接返回给调用方，调度管道内永远不会自动重试。
func IsValidation(err error) bool {
	code, _ := Decode(err)
	return code >= 20000 && code < 21000
}

// IsBusiness 判断是否属于业务/资源类错误 (21xxx)。
// 调度管道内该类错误仅记录日志，条目等待下个周期重试。
func IsBusiness(err error) bool {
	code, _ := Decode(err)
	return code >= 21000 && code < 22000
}

// IsChain 判断是否属于链上/RPC 瞬时错误 (22xxx)。
func IsChain(err error) bool {
	code, _ := Decode(err)
	return code >= 22000 && code < 23000
}

// Common Errors (10xxx)
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrKeystore         = Errno{Code: 10005, Message: "Keystore error"}
)

// Validation Errors (20xxx): 同步返回调用方，不重试
var (
	ErrInvalidAddress      = Errno{Code: 20101, Message: "Invalid address"}
	ErrInvalidAmount       = Errno{Code: 20102, Message: "Amount must be positive"}
	ErrUnsupportedAsset    = Errno{Code: 20103, Message: "Unsupported asset"}
	ErrRentBelowMinimum    = Errno{Code: 20201, Message: "Energy amount below rental minimum"}
	ErrDurationUnsupported = Errno{Code: 20202, Message: "Rental duration exceeds the largest tier"}
)

// Business / Resource Errors (21xxx): 管道内记录日志后下周期重试
var (
	ErrWalletNotFound            = Errno{Code: 21101, Message: "Wallet does not exist"}
	ErrInsufficientBalance       = Errno{Code: 21102, Message: "Insufficient balance"}
	ErrInsufficientFrozen        = Errno{Code: 21103, Message: "Insufficient frozen balance"}
	ErrLedgerDuplicate           = Errno{Code: 21104, Message: "Ledger mutation already applied"}
	ErrOrderNotFound             = Errno{Code: 21105, Message: "Order does not exist"}
	ErrOrderStateConflict        = Errno{Code: 21106, Message: "Order is not in an eligible state"}
	ErrInsufficientPlatformPower = Errno{Code: 21201, Message: "Insufficient platform energy"}
	ErrInsufficientBandwidth     = Errno{Code: 21202, Message: "Insufficient bandwidth"}
	ErrReceiverNotActivated      = Errno{Code: 21204, Message: "Receiver address is not activated on chain"}
	ErrHotWalletUnderfunded      = Errno{Code: 21205, Message: "Hot wallet balance below payout amount"}
)

// Chain / RPC Errors (22xxx): 瞬时失败，跳过本周期
var (
	ErrChainRPC       = Errno{Code: 22001, Message: "Chain RPC call failed"}
	ErrBroadcast      = Errno{Code: 22002, Message: "Transaction broadcast rejected"}
	ErrWatcherTimeout = Errno{Code: 22005, Message: "Confirmation watch timed out"}
)
