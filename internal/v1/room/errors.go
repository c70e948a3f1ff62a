package room

import "github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"

// OpError is a Room Registry operation failure carrying the closed error
// code to report to the sender (§7).
type OpError struct {
	Code    types.ErrorCode
	Message string
}

func (e *OpError) Error() string { return string(e.Code) + ": " + e.Message }

func opErr(code types.ErrorCode, msg string) *OpError {
	return &OpError{Code: code, Message: msg}
}
