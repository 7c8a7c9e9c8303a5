package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeRW struct {
	io.Reader
	io.Writer
}

func TestServerHandshake(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantErr      error
		wantResponse string
	}{
		{name: "valid magic", input: "clnt", wantResponse: "serv"},
		{name: "valid magic with trailing request", input: "clnt\x00\x00\x00\x05hello", wantResponse: "serv"},
		{name: "http client", input: "GET / HTTP/1.1", wantErr: ErrBadHandshake},
		{name: "server magic from client", input: "serv", wantErr: ErrBadHandshake},
		{name: "case mismatch", input: "CLNT", wantErr: ErrBadHandshake},
		{name: "short", input: "cl", wantErr: io.ErrUnexpectedEOF},
		{name: "empty", input: "", wantErr: io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := ServerHandshake(pipeRW{Reader: strings.NewReader(tt.input), Writer: &out})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, out.Len(), "server must not answer a failed handshake")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantResponse, out.String())
		})
	}
}

func TestClientHandshake(t *testing.T) {
	t.Run("valid server", func(t *testing.T) {
		var out bytes.Buffer
		err := ClientHandshake(pipeRW{Reader: strings.NewReader("serv"), Writer: &out})

		require.NoError(t, err)
		assert.Equal(t, "clnt", out.String())
	})

	t.Run("wrong server magic", func(t *testing.T) {
		var out bytes.Buffer
		err := ClientHandshake(pipeRW{Reader: strings.NewReader("nope"), Writer: &out})

		assert.ErrorIs(t, err, ErrBadHandshake)
	})

	t.Run("server hung up", func(t *testing.T) {
		var out bytes.Buffer
		err := ClientHandshake(pipeRW{Reader: strings.NewReader(""), Writer: &out})

		assert.ErrorIs(t, err, io.EOF)
		assert.NotErrorIs(t, err, ErrBadHandshake)
	})
}
