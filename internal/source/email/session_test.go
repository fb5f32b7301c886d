package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/source"
)

const (
	testUser     = "alice@example.com"
	testPassword = "hunter2"
)

// transcript records the raw IMAP traffic the test server sees.
type transcript struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *transcript) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *transcript) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

type testServer struct {
	addr  string
	roots *x509.CertPool
	wire  *transcript
}

// newTestServer serves an in-memory account over IMAPS on localhost with
// messages appended to INBOX in order, so their UIDs are 1..n.
func newTestServer(t *testing.T, messages ...string) *testServer {
	t.Helper()

	// httptest's certificate is valid for 127.0.0.1.
	certSrv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(certSrv.Close)
	roots := x509.NewCertPool()
	roots.AddCert(certSrv.Certificate())

	user := imapmemserver.NewUser(testUser, testPassword)
	require.NoError(t, user.Create("INBOX", nil))
	for _, m := range messages {
		_, err := user.Append("INBOX", bytes.NewReader([]byte(m)), &imap.AppendOptions{})
		require.NoError(t, err)
	}
	mem := imapmemserver.New()
	mem.AddUser(user)

	wire := &transcript{}
	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Logger:      zap.NewStdLog(zap.NewNop()),
		DebugWriter: wire,
	})

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: certSrv.TLS.Certificates})
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return &testServer{addr: ln.Addr().String(), roots: roots, wire: wire}
}

func (ts *testServer) config(password string) model.Config {
	return model.Config{
		Server:      ts.addr,
		Mailbox:     model.DefaultMailbox,
		MaxMessages: 10,
		Credentials: model.SecretPair{Username: testUser, Password: password},
	}
}

func (ts *testServer) open(t *testing.T, cfg model.Config) (source.Mailbox, error) {
	t.Helper()
	mb, err := openWithRoots(zap.NewNop(), ts.roots)(context.Background(), cfg)
	if err == nil {
		t.Cleanup(func() { _ = mb.Close() })
	}
	return mb, err
}

func message(from, subject string) string {
	return "From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello\r\n"
}

func TestSessionListsAndFetchesReadOnly(t *testing.T) {
	msgs := []string{
		message("billing@example.com", "Invoice #1"),
		message("boss@example.com", "Weekly meeting"),
		message("shop@example.com", "=?ISO-8859-1?Q?Caf=E9_promo?="),
	}
	ts := newTestServer(t, msgs...)
	ctx := context.Background()

	mb, err := ts.open(t, ts.config(testPassword))
	require.NoError(t, err)

	ids, err := mb.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, ids)

	for i, id := range ids {
		resp, err := mb.Fetch(ctx, id)
		require.NoError(t, err)
		require.True(t, resp.HasPayload(), "uid %d", id)
		assert.Equal(t, id, resp.ID)
		assert.Equal(t, msgs[i], string(resp.Raw))
	}

	resp, err := mb.Fetch(ctx, 3)
	require.NoError(t, err)
	h := ParseHeaders(resp.Raw)
	assert.Equal(t, "shop@example.com", h.From)
	assert.Equal(t, "Café promo", h.Subject)

	wire := ts.wire.String()
	assert.Contains(t, wire, "EXAMINE INBOX")
	assert.Contains(t, wire, "UID SEARCH ALL")
	assert.Contains(t, wire, "BODY.PEEK[]")

	// Nothing we fetched may have been marked read.
	s, ok := mb.(*Session)
	require.True(t, ok)
	bufs, err := s.client.Fetch(imap.UIDSetNum(1, 2, 3), &imap.FetchOptions{UID: true, Flags: true}).Collect()
	require.NoError(t, err)
	require.Len(t, bufs, 3)
	for _, b := range bufs {
		assert.NotContains(t, b.Flags, imap.FlagSeen, "uid %d", b.UID)
	}
}

func TestSessionEmptyMailbox(t *testing.T) {
	ts := newTestServer(t)

	mb, err := ts.open(t, ts.config(testPassword))
	require.NoError(t, err)

	ids, err := mb.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSessionFetchMissingUIDHasNoPayload(t *testing.T) {
	ts := newTestServer(t, message("a@example.com", "hi"))

	mb, err := ts.open(t, ts.config(testPassword))
	require.NoError(t, err)

	resp, err := mb.Fetch(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), resp.ID)
	assert.False(t, resp.HasPayload())
}

func TestOpenMissingMailboxIsQueryError(t *testing.T) {
	ts := newTestServer(t)
	cfg := ts.config(testPassword)
	cfg.Mailbox = "Archive"

	_, err := ts.open(t, cfg)
	require.Error(t, err)
	assert.True(t, source.IsQueryError(err))

	var queryErr *source.QueryError
	require.True(t, errors.As(err, &queryErr))
	assert.Equal(t, "select Archive", queryErr.Op)
}

func TestOpenWrongPasswordIsAuthError(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.open(t, ts.config("wrong"))
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
	assert.False(t, source.IsConnectionError(err))
	assert.NotContains(t, err.Error(), "wrong")
}

func TestOpenUntrustedCertificateIsConnectionError(t *testing.T) {
	ts := newTestServer(t)

	_, err := openWithRoots(zap.NewNop(), x509.NewCertPool())(context.Background(), ts.config(testPassword))
	require.Error(t, err)
	assert.True(t, source.IsConnectionError(err))
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t, message("a@example.com", "hi"))

	mb, err := ts.open(t, ts.config(testPassword))
	require.NoError(t, err)

	require.NoError(t, mb.Close())
	require.NoError(t, mb.Close())

	_, err = mb.ListAll(context.Background())
	assert.Error(t, err)
}

func TestSessionHonorsCanceledContext(t *testing.T) {
	ts := newTestServer(t, message("a@example.com", "hi"))

	mb, err := ts.open(t, ts.config(testPassword))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = mb.ListAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = mb.Fetch(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
