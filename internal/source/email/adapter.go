package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mailsort/internal/source"
)

// Session implements source.Mailbox over a logged-in imapclient.Client.
type Session struct {
	client  *imapclient.Client
	stop    func() bool
	mailbox string
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ source.Mailbox = (*Session)(nil)

func newSession(
	client *imapclient.Client,
	stop func() bool,
	mailbox string,
	logger *zap.Logger,
) *Session {
	return &Session{
		client:  client,
		stop:    stop,
		mailbox: mailbox,
		logger:  logger,
	}
}

// selectMailbox opens the mailbox read-only so fetches never set \Seen.
func (s *Session) selectMailbox(ctx context.Context) error {
	data, err := s.client.Select(s.mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return queryError(ctx, "select "+s.mailbox, err)
	}

	s.logger.Debug("mailbox selected",
		zap.String("mailbox", s.mailbox),
		zap.Uint32("messages", data.NumMessages),
	)
	return nil
}

// ListAll issues UID SEARCH ALL and returns the UIDs in server order.
func (s *Session) ListAll(ctx context.Context) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchData, err := s.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, queryError(ctx, "search all", err)
	}

	uids := searchData.AllUIDs()
	ids := make([]uint32, len(uids))
	for i, uid := range uids {
		ids[i] = uint32(uid)
	}
	return ids, nil
}

// Fetch retrieves BODY.PEEK[] for a single UID. A response carrying no
// body is returned as a FetchResponse without payload, not an error.
func (s *Session) Fetch(ctx context.Context, id uint32) (*source.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(id)), fetchOpts)

	resp := &source.FetchResponse{ID: id}

	msg := fetchCmd.Next()
	if msg != nil {
		buf, err := msg.Collect()
		if err != nil {
			_ = fetchCmd.Close()
			return nil, &source.FetchError{ID: id, Err: fmt.Errorf("collecting message data: %w", err)}
		}
		resp.Raw = buf.FindBodySection(bodySection)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &source.FetchError{ID: id, Err: err}
	}

	return resp, nil
}

// Close logs out and closes the connection. Only the first call does any
// work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		if err := s.client.Logout().Wait(); err != nil {
			s.logger.Debug("imap logout failed", zap.Error(err))
		}
		if err := s.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// queryError prefers the context error when the failure came from
// cancellation closing the connection underneath the command.
func queryError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &source.QueryError{Op: op, Err: err}
}
