package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iotivity/ca-go/pkg/framing"
	"github.com/iotivity/ca-go/pkg/session"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{fmt.Errorf("%w: bad length", framing.ErrProtocolViolation), ErrProtocolViolation},
		{fmt.Errorf("%w: bad cert", session.ErrHandshakeFailed), ErrHandshakeFailed},
		{fmt.Errorf("%w: eof", session.ErrFlushFailed), ErrConnectionLost},
		{session.ErrTableFull, ErrPeerLimit},
		{session.ErrQueueFull, ErrPendingQueueFull},
		{session.ErrClosed, ErrSessionClosed},
		{errors.New("anything else"), ErrConnectionLost},
		{ErrNoRoute, ErrNoRoute},
		{fmt.Errorf("%w: coaps+tcp://10.0.0.2:5684", ErrSecurityMismatch), ErrSecurityMismatch},
	}
	for _, tt := range tests {
		got := translate(tt.in)
		assert.ErrorIs(t, got, tt.want, tt.in.Error())
	}
	assert.NoError(t, translate(nil))

	// Exported errors pass through unchanged.
	wrapped := fmt.Errorf("%w: refused", ErrConnectFailed)
	assert.Same(t, wrapped, translate(wrapped))
}
