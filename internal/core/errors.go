package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/ircchat/internal/proto"
)

// ErrSessionClosed is returned when work arrives for a closed session.
var ErrSessionClosed = errors.New("session closed")

// NumericError is a protocol error reported to the originating session as a
// numeric reply. The connection stays open.
type NumericError struct {
	Code int
	Text string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("%03d %s", e.Code, e.Text)
}

func numericError(code int, text string) *NumericError {
	return &NumericError{Code: code, Text: text}
}

func needMoreParams(verb string) *NumericError {
	return numericError(proto.ErrNeedMoreParams, verb+" :Not enough parameters")
}
