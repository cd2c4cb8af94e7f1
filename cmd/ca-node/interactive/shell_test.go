package interactive

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/session"
	"github.com/iotivity/ca-go/pkg/transport"
	"github.com/iotivity/ca-go/pkg/wire"
)

type fakeBackend struct {
	sent         [][]byte
	sentTo       []endpoint.Endpoint
	sendErr      error
	sessions     []transport.SessionInfo
	disconnected []endpoint.Endpoint
	closedAll    int
}

func (f *fakeBackend) Send(ep endpoint.Endpoint, payload []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTo = append(f.sentTo, ep)
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeBackend) Sessions() []transport.SessionInfo { return f.sessions }

func (f *fakeBackend) Disconnect(ep endpoint.Endpoint) error {
	f.disconnected = append(f.disconnected, ep)
	return nil
}

func (f *fakeBackend) DisconnectAll(endpoint.Filter) int { return f.closedAll }

func newTestShell() (*Shell, *fakeBackend, *bytes.Buffer) {
	b := &fakeBackend{}
	var out bytes.Buffer
	return newShell(nil, &out, b, nil), b, &out
}

func TestPostOverTCP(t *testing.T) {
	s, b, out := newTestShell()

	assert.True(t, s.Exec(context.Background(), "post coap+tcp://127.0.0.1:5683 hello world"))
	require.Len(t, b.sent, 1)
	assert.Equal(t, endpoint.AdapterTCP, b.sentTo[0].Adapter)

	m, err := wire.Summarize(true, b.sent[0])
	require.NoError(t, err)
	assert.Equal(t, wire.CodePost, m.Code)
	assert.Len(t, m.Token, 4)
	assert.Equal(t, []byte("hello world"), m.Payload)
	assert.Contains(t, out.String(), "-> coap+tcp://127.0.0.1:5683 0.02")
}

func TestGetOverUDP(t *testing.T) {
	s, b, _ := newTestShell()

	s.Exec(context.Background(), "get coap://127.0.0.1:5683")
	s.Exec(context.Background(), "get coap://127.0.0.1:5683")
	require.Len(t, b.sent, 2)

	first, err := wire.Summarize(false, b.sent[0])
	require.NoError(t, err)
	second, err := wire.Summarize(false, b.sent[1])
	require.NoError(t, err)
	assert.Equal(t, wire.CodeGet, first.Code)
	assert.Equal(t, wire.TypeNonConfirmable, first.Type)
	assert.NotEqual(t, first.MessageID, second.MessageID)
}

func TestRequestErrors(t *testing.T) {
	s, b, out := newTestShell()

	s.Exec(context.Background(), "get")
	assert.Contains(t, out.String(), "Usage: get <uri>")
	out.Reset()

	s.Exec(context.Background(), "get http://x")
	assert.Contains(t, out.String(), "Invalid URI")
	out.Reset()

	b.sendErr = errors.New("queue full")
	s.Exec(context.Background(), "get coap://127.0.0.1:5683")
	assert.Contains(t, out.String(), "queue full")
}

func TestSessions(t *testing.T) {
	s, b, out := newTestShell()

	s.Exec(context.Background(), "sessions")
	assert.Contains(t, out.String(), "No sessions")
	out.Reset()

	b.sessions = []transport.SessionInfo{{
		Endpoint: endpoint.New(endpoint.AdapterTCP, endpoint.FlagIPv4|endpoint.FlagSecure, "10.0.0.2", 5684),
		Role:     session.RoleClient,
		State:    session.StateEstablished,
		PeerID:   "0b6c7a52",
		Created:  time.Now().Add(-time.Minute),
		Active:   time.Now(),
	}}
	s.Exec(context.Background(), "ls")
	assert.Contains(t, out.String(), "coaps+tcp://10.0.0.2:5684")
	assert.Contains(t, out.String(), "0b6c7a52")
	assert.Contains(t, out.String(), "IDLE")
}

func TestDisconnect(t *testing.T) {
	s, b, out := newTestShell()

	s.Exec(context.Background(), "disconnect coap+tcp://10.0.0.2:5683")
	require.Len(t, b.disconnected, 1)
	assert.Equal(t, uint16(5683), b.disconnected[0].Port)

	b.closedAll = 3
	s.Exec(context.Background(), "dc all")
	assert.Contains(t, out.String(), "Closed 3 sessions")
}

func TestBrowseWithoutDiscovery(t *testing.T) {
	s, _, out := newTestShell()
	s.Exec(context.Background(), "browse _coap._udp")
	assert.Contains(t, out.String(), "Discovery is disabled")
}

func TestQuitAndUnknown(t *testing.T) {
	s, _, out := newTestShell()
	assert.True(t, s.Exec(context.Background(), "bogus"))
	assert.Contains(t, out.String(), "Unknown command: bogus")
	assert.True(t, s.Exec(context.Background(), "   "))
	assert.False(t, s.Exec(context.Background(), "quit"))
}
