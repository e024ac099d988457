package domain

import "fmt"

// RejectionCode classifies why the order machinery refused an operation.
type RejectionCode string

const (
	RejectOrderNotFound     RejectionCode = "ORDER_NOT_FOUND"
	RejectLineNotFound      RejectionCode = "ORDER_LINE_NOT_FOUND"
	RejectPaymentNotFound   RejectionCode = "PAYMENT_NOT_FOUND"
	RejectRefundNotFound    RejectionCode = "REFUND_NOT_FOUND"
	RejectInvalidTransition RejectionCode = "ORDER_STATE_TRANSITION_ERROR"
	RejectModificationError RejectionCode = "ORDER_MODIFICATION_ERROR"
	RejectCancelError       RejectionCode = "CANCEL_ORDER_ERROR"
)

// Rejection is the error-shaped half of a discriminated operation result.
// Order operations return it as a value next to their success payload instead
// of an error: a rejection is a domain answer ("you may not do that right
// now"), not a failure of the call itself. Callers must check it before using
// the success payload.
type Rejection struct {
	Code    RejectionCode
	Message string
}

func Rejectf(code RejectionCode, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (r *Rejection) String() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}
