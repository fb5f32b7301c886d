package email

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/source"
)

func TestNewIMAPClientDefaultsPort(t *testing.T) {
	assert.Equal(t, "imap.example.com:993", NewIMAPClient("imap.example.com", "u", "p", nil).Addr())
	assert.Equal(t, "imap.example.com:1993", NewIMAPClient("imap.example.com:1993", "u", "p", nil).Addr())
}

func TestLoginErrorMapping(t *testing.T) {
	c := NewIMAPClient("imap.example.com:993", "me@example.com", "secret", nil)

	rejected := c.loginError(&imap.Error{
		Type: imap.StatusResponseTypeNo,
		Code: imap.ResponseCodeAuthenticationFailed,
		Text: "Invalid credentials",
	})
	assert.True(t, source.IsAuthError(rejected))
	assert.NotContains(t, rejected.Error(), "secret")

	broken := c.loginError(io.ErrUnexpectedEOF)
	assert.True(t, source.IsConnectionError(broken))
	assert.True(t, errors.Is(broken, io.ErrUnexpectedEOF))
}

func TestOpenUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Open(nil)(context.Background(), model.Config{
		Server:      addr,
		Credentials: model.SecretPair{Username: "u", Password: "p"},
	})
	require.Error(t, err)
	assert.True(t, source.IsConnectionError(err))
	assert.False(t, source.IsAuthError(err))
}
