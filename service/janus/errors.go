package janus

import (
	"errors"
	"fmt"

	"janusbridge/tools/errs"
)

// Engine error taxonomy. Match with errors.Is.
var (
	ErrNotConnected   = errs.NewCodeError(1001, "janus: not connected")
	ErrTimeout        = errs.NewCodeError(1002, "janus: request timed out")
	ErrConnectionLost = errs.NewCodeError(1003, "janus: connection lost")
	ErrShutdown       = errs.NewCodeError(1004, "janus: engine shut down")
	ErrMalformed      = errs.NewCodeError(1005, "janus: malformed frame")
	ErrDuplicateToken = errs.NewCodeError(1006, "janus: duplicate transaction")
)

// GatewayError is an explicit "janus":"error" reply.
type GatewayError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("janus: gateway error %d: %s", e.Code, e.Reason)
}

// AsGatewayError extracts a GatewayError from err's chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
