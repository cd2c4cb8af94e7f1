package secure

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerID(t *testing.T) {
	id := uuid.MustParse("2c5b7f1e-0d3a-4c4e-9f1b-6a2d3e4f5a6b")

	tests := []struct {
		name    string
		subject pkix.Name
		want    uuid.UUID
		wantErr error
	}{
		{
			name:    "common name",
			subject: pkix.Name{CommonName: "uuid:" + id.String()},
			want:    id,
		},
		{
			name:    "organizational unit",
			subject: pkix.Name{CommonName: "device", OrganizationalUnit: []string{"uuid:" + id.String()}},
			want:    id,
		},
		{
			name:    "missing prefix",
			subject: pkix.Name{CommonName: id.String()},
			wantErr: ErrNoPeerID,
		},
		{
			name:    "truncated",
			subject: pkix.Name{CommonName: "uuid:2c5b7f1e"},
			wantErr: ErrNoPeerID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeerID([]*x509.Certificate{{Subject: tt.subject}})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeerIDNoCertificate(t *testing.T) {
	_, err := PeerID(nil)
	assert.ErrorIs(t, err, ErrNoPeerCertificate)
}
