package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

func TestServiceTypes(t *testing.T) {
	tests := []struct {
		adapter endpoint.Adapter
		secure  bool
		want    string
	}{
		{endpoint.AdapterUDP, false, ServiceTypeUDP},
		{endpoint.AdapterUDP, true, ServiceTypeUDPSecure},
		{endpoint.AdapterTCP, false, ServiceTypeTCP},
		{endpoint.AdapterTCP, true, ServiceTypeTCPSecure},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ServiceType(tt.adapter, tt.secure))

			adapter, secure, err := ParseServiceType(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.adapter, adapter)
			assert.Equal(t, tt.secure, secure)
		})
	}

	_, _, err := ParseServiceType("_http._tcp")
	assert.ErrorIs(t, err, ErrUnknownServiceType)
}

func TestServiceFor(t *testing.T) {
	s, err := ServiceFor(endpoint.AdapterTCP, true, &net.TCPAddr{IP: net.IPv6zero, Port: 5684})
	require.NoError(t, err)
	assert.Equal(t, Service{Adapter: endpoint.AdapterTCP, Secure: true, Port: 5684}, s)
	assert.Equal(t, ServiceTypeTCPSecure, s.Type())
}

func TestInfoNormalize(t *testing.T) {
	info := Info{Services: []Service{
		{Adapter: endpoint.AdapterUDP, Port: 5683},
		{Adapter: endpoint.AdapterTCP, Port: 5683},
		{Adapter: endpoint.AdapterUDP, Port: 5683},
		{Adapter: endpoint.AdapterUDP, Port: 6000},
		{Adapter: endpoint.AdapterUDP, Secure: true, Port: 5684},
	}}
	info.Normalize()
	assert.Equal(t, []Service{
		{Adapter: endpoint.AdapterUDP, Port: 5683},
		{Adapter: endpoint.AdapterTCP, Port: 5683},
		{Adapter: endpoint.AdapterUDP, Secure: true, Port: 5684},
	}, info.Services)
}

func TestPeerEndpoints(t *testing.T) {
	p := &Peer{
		Port:      5684,
		Adapter:   endpoint.AdapterTCP,
		Secure:    true,
		Addresses: []string{"192.168.1.5", "fe80::1", "not-an-ip"},
	}
	eps := p.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, endpoint.FlagSecure|endpoint.FlagIPv4, eps[0].Flags)
	assert.Equal(t, "192.168.1.5", eps[0].Address)
	assert.Equal(t, endpoint.FlagSecure|endpoint.FlagIPv6, eps[1].Flags)
	assert.Equal(t, uint16(5684), eps[1].Port)
}

func TestTXTRoundTrip(t *testing.T) {
	info := &Info{DeviceID: "0b6c7a52-9c1e-4a55-8f42-6d0f1ad3c1b7", Name: "kitchen"}
	strs := TXTRecordsToStrings(EncodeTXT(info))
	assert.Equal(t, []string{
		"di=0b6c7a52-9c1e-4a55-8f42-6d0f1ad3c1b7",
		"n=kitchen",
		"txtvers=1",
	}, strs)

	var p Peer
	require.NoError(t, DecodeTXT(StringsToTXTRecords(strs), &p))
	assert.Equal(t, info.DeviceID, p.DeviceID)
	assert.Equal(t, "kitchen", p.Name)
}

func TestDecodeTXTErrors(t *testing.T) {
	var p Peer
	assert.ErrorIs(t, DecodeTXT(TXTRecordMap{}, &p), ErrMissingRequired)
	assert.ErrorIs(t, DecodeTXT(TXTRecordMap{TXTKeyVersion: "9"}, &p), ErrInvalidTXT)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "flag", "", "b=x=y"})
	assert.Equal(t, TXTRecordMap{"a": "1", "flag": "", "b": "x=y"}, txt)
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, ValidateInstanceName("node"))
	assert.ErrorIs(t, ValidateInstanceName(""), ErrInstanceNameTooLong)
	long := make([]byte, MaxInstanceNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateInstanceName(string(long)), ErrInstanceNameTooLong)
}
