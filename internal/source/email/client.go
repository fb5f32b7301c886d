package email

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/source"
)

// dialTimeout bounds the TCP + TLS handshake.
const dialTimeout = 30 * time.Second

// IMAPClient wraps go-imap v2 for connecting to and authenticating
// against an IMAPS server.
type IMAPClient struct {
	addr      string
	username  string
	password  string
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// NewIMAPClient creates a new IMAP client configuration. addr is host:port;
// a bare host gets the IMAPS port.
func NewIMAPClient(addr, username, password string, logger *zap.Logger) *IMAPClient {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "993")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	host, _, _ := net.SplitHostPort(addr)

	return &IMAPClient{
		addr:     addr,
		username: username,
		password: password,
		tlsConfig: &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		},
		logger: logger,
	}
}

// Addr returns the host:port the client dials.
func (c *IMAPClient) Addr() string {
	return c.addr
}

// Connect establishes a TLS connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client. Cancelling ctx closes the
// connection, which unblocks any command in flight.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, func() bool, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    c.tlsConfig,
	}

	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, nil, &source.ConnectionError{Addr: c.addr, Err: err}
	}

	client := imapclient.New(conn, nil)
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		stop()
		_ = client.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, c.loginError(err)
	}

	c.logger.Debug("imap login succeeded",
		zap.String("addr", c.addr),
		zap.String("username", c.username),
	)

	return client, stop, nil
}

// loginError maps a failed LOGIN to AuthError when the server answered
// with a tagged NO/BAD, and to ConnectionError when the transport broke.
func (c *IMAPClient) loginError(err error) error {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return &source.AuthError{Username: c.username, Err: err}
	}
	return &source.ConnectionError{Addr: c.addr, Err: err}
}

// Open is a source.Opener: it authenticates with cfg's credentials and
// selects cfg's mailbox read-only.
func Open(logger *zap.Logger) source.Opener {
	return openWithRoots(logger, nil)
}

// openWithRoots is Open verifying the server against roots instead of the
// system pool when roots is non-nil.
func openWithRoots(logger *zap.Logger, roots *x509.CertPool) source.Opener {
	return func(ctx context.Context, cfg model.Config) (source.Mailbox, error) {
		c := NewIMAPClient(
			cfg.Server,
			cfg.Credentials.Username,
			cfg.Credentials.Password,
			logger,
		)
		c.tlsConfig.RootCAs = roots

		client, stop, err := c.Connect(ctx)
		if err != nil {
			return nil, err
		}

		mailbox := cfg.Mailbox
		if mailbox == "" {
			mailbox = model.DefaultMailbox
		}

		s := newSession(client, stop, mailbox, c.logger)
		if err := s.selectMailbox(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}

		return s, nil
	}
}
