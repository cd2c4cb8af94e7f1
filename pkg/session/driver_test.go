package session

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/secure/mocks"
)

func newSecureSession(t *testing.T, table *Table, engine secure.Engine) *Session {
	t.Helper()
	s := New(Options{
		Endpoint: tcpEndpoint("10.0.0.2", 5684, 0),
		Role:     RoleClient,
		Socket:   &fakeSocket{},
		Engine:   engine,
	})
	require.NoError(t, table.Insert(s))
	return s
}

func TestStepPendingResults(t *testing.T) {
	for _, pending := range []error{secure.ErrWantRead, secure.ErrWantWrite, secure.ErrClosedBeforeStart} {
		t.Run(pending.Error(), func(t *testing.T) {
			table := NewTable(0)
			engine := mocks.NewMockEngine(t)
			engine.EXPECT().Handshake().Return(pending).Once()

			s := newSecureSession(t, table, engine)
			require.NoError(t, s.Pending().Enqueue([]byte("queued")))

			state, err := NewDriver(DriverConfig{Table: table}).Step(s)
			require.NoError(t, err)
			assert.Equal(t, StateInProgress, state)
			assert.Equal(t, 1, s.Pending().Len())
			assert.Same(t, s, table.Find(s.Endpoint()))
		})
	}
}

func TestStepEstablishedFlushesFIFO(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)

	var written []string
	engine.EXPECT().Handshake().Return(secure.ErrWantRead).Once()
	engine.EXPECT().Handshake().Return(nil).Once()
	engine.EXPECT().PeerCertificates().Return(nil)
	engine.EXPECT().Write(mock.Anything).RunAndReturn(func(p []byte) (int, error) {
		written = append(written, string(p))
		return len(p), nil
	}).Times(3)

	var events []log.Event
	driver := NewDriver(DriverConfig{
		Table:          table,
		ProtocolLogger: log.LoggerFunc(func(e log.Event) { events = append(events, e) }),
	})

	s := newSecureSession(t, table, engine)
	require.NoError(t, s.Pending().Enqueue([]byte("P1")))

	state, err := driver.Step(s)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, state)

	require.NoError(t, s.Pending().Enqueue([]byte("P2")))
	require.NoError(t, s.Pending().Enqueue([]byte("P3")))

	state, err = driver.Step(s)
	require.NoError(t, err)
	assert.Equal(t, StateEstablished, state)
	assert.Equal(t, []string{"P1", "P2", "P3"}, written)
	assert.Equal(t, 0, s.Pending().Len())

	require.Len(t, events, 2)
	assert.Equal(t, "IN_PROGRESS", events[0].StateChange.NewState)
	assert.Equal(t, "ESTABLISHED", events[1].StateChange.NewState)
	assert.Equal(t, log.RoleClient, events[1].LocalRole)
}

func TestStepTerminalNotRedriven(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	engine.EXPECT().Handshake().Return(nil).Once()
	engine.EXPECT().PeerCertificates().Return(nil).Once()

	s := newSecureSession(t, table, engine)
	driver := NewDriver(DriverConfig{Table: table})

	_, err := driver.Step(s)
	require.NoError(t, err)

	// No further Handshake expectations: a second step must not call it.
	state, err := driver.Step(s)
	require.NoError(t, err)
	assert.Equal(t, StateEstablished, state)
}

func TestStepHelloVerify(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	engine.EXPECT().Handshake().Return(secure.ErrHelloVerifyRequired).Once()
	engine.EXPECT().Reset().Return(nil).Once()
	engine.EXPECT().Handshake().Return(secure.ErrWantRead).Once()

	s := newSecureSession(t, table, engine)
	state, err := NewDriver(DriverConfig{Table: table}).Step(s)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, state)
}

func TestStepHelloVerifyTwiceStaysPending(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	engine.EXPECT().Handshake().Return(secure.ErrHelloVerifyRequired).Twice()
	engine.EXPECT().Reset().Return(nil).Once()

	s := newSecureSession(t, table, engine)
	state, err := NewDriver(DriverConfig{Table: table}).Step(s)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, state)
}

func TestStepFatalRemovesSession(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	cause := errors.New("bad certificate")
	engine.EXPECT().Handshake().Return(cause).Once()
	engine.EXPECT().Close().Return(nil).Once()

	s := newSecureSession(t, table, engine)
	require.NoError(t, s.Pending().Enqueue([]byte("lost")))

	state, err := NewDriver(DriverConfig{Table: table}).Step(s)
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
	assert.ErrorIs(t, err, cause)
	assert.True(t, s.Closed())
	assert.Nil(t, table.Find(s.Endpoint()))
	assert.Equal(t, 0, s.Pending().Len())

	// Removed sessions are not stepped again.
	_, err = NewDriver(DriverConfig{Table: table}).Step(s)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStepFlushFailureDiscardsRest(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	engine.EXPECT().Handshake().Return(nil).Once()
	engine.EXPECT().PeerCertificates().Return(nil).Once()
	engine.EXPECT().Write([]byte("P1")).Return(2, nil).Once()
	engine.EXPECT().Write([]byte("P2")).Return(0, errors.New("broken pipe")).Once()

	s := newSecureSession(t, table, engine)
	for _, p := range []string{"P1", "P2", "P3"} {
		require.NoError(t, s.Pending().Enqueue([]byte(p)))
	}

	state, err := NewDriver(DriverConfig{Table: table}).Step(s)
	assert.Equal(t, StateEstablished, state)
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.Equal(t, 0, s.Pending().Len())
}

func TestStepBindsPeerID(t *testing.T) {
	id := uuid.MustParse("6f1c2b9e-3a4d-4e5f-8a9b-0c1d2e3f4a5b")
	cert := selfSigned(t, "uuid:"+id.String())

	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	engine.EXPECT().Handshake().Return(nil).Once()
	engine.EXPECT().PeerCertificates().Return([]*x509.Certificate{cert}).Once()

	s := newSecureSession(t, table, engine)
	_, err := NewDriver(DriverConfig{Table: table}).Step(s)
	require.NoError(t, err)

	got, ok := s.PeerID()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestStepMissingPeerIDIsNotFatal(t *testing.T) {
	table := NewTable(0)
	engine := mocks.NewMockEngine(t)
	engine.EXPECT().Handshake().Return(nil).Once()
	engine.EXPECT().PeerCertificates().Return([]*x509.Certificate{selfSigned(t, "plain device")}).Once()

	s := newSecureSession(t, table, engine)
	state, err := NewDriver(DriverConfig{Table: table}).Step(s)
	require.NoError(t, err)
	assert.Equal(t, StateEstablished, state)
	_, ok := s.PeerID()
	assert.False(t, ok)
}

func TestStepPlaintext(t *testing.T) {
	s := newPlain(tcpEndpoint("10.0.0.1", 5683, 0))
	assert.Equal(t, StateEstablished, s.State())
	_, err := NewDriver(DriverConfig{}).Step(s)
	assert.ErrorIs(t, err, ErrNoEngine)
}

func selfSigned(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
