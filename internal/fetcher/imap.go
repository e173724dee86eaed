package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"

	"mail-sticky-go/internal/config"
)

const defaultTimeout = 60 * time.Second

// Mailbox is an authenticated session with the configured folder selected
type Mailbox interface {
	// ListNewIDs returns the UIDs greater than cursor in ascending order.
	ListNewIDs(ctx context.Context, cursor uint32) ([]uint32, error)
	// FetchRaw returns the full RFC 822 message without setting \Seen.
	FetchRaw(ctx context.Context, uid uint32) ([]byte, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// Dialer opens mailbox sessions
type Dialer interface {
	Configured() bool
	Open(ctx context.Context) (Mailbox, error)
}

// IMAPDialer opens IMAP sessions from configuration
type IMAPDialer struct {
	cfg    *config.IMAPConfig
	tokens oauth2.TokenSource
}

// NewIMAPDialer creates a dialer for the configured mailbox
func NewIMAPDialer(cfg *config.IMAPConfig) *IMAPDialer {
	d := &IMAPDialer{cfg: cfg}
	if cfg.UsesOAuth() {
		oauth2Config := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{gmail.MailGoogleComScope},
			Endpoint:     google.Endpoint,
		}
		d.tokens = oauth2Config.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}
	return d
}

// Configured reports whether credentials are present
func (d *IMAPDialer) Configured() bool {
	return d.cfg.Credentialed()
}

// Open connects, authenticates and selects the configured folder
func (d *IMAPDialer) Open(ctx context.Context) (Mailbox, error) {
	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cutoff, err := d.cfg.Cutoff()
	if err != nil {
		return nil, err
	}

	netDialer := &net.Dialer{Timeout: timeout}
	var c *client.Client
	if d.cfg.TLS {
		c, err = client.DialWithDialerTLS(netDialer, d.cfg.Addr(), &tls.Config{ServerName: d.cfg.Host})
	} else {
		c, err = client.DialWithDialer(netDialer, d.cfg.Addr())
	}
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	c.Timeout = timeout

	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := d.authenticate(c); err != nil {
		_ = c.Logout()
		return nil, &TransportError{Op: "login", Err: err}
	}

	if _, err := c.Select(d.cfg.Folder, false); err != nil {
		_ = c.Logout()
		return nil, &ProtocolError{Op: "select " + d.cfg.Folder, Err: err}
	}

	logrus.Debugf("Opened IMAP mailbox %s on %s", d.cfg.Folder, d.cfg.Host)
	return &IMAPMailbox{client: c, cutoff: cutoff}, nil
}

func (d *IMAPDialer) authenticate(c *client.Client) error {
	if d.tokens == nil {
		return c.Login(d.cfg.Username, d.cfg.Password)
	}
	tok, err := d.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to refresh oauth token: %w", err)
	}
	return c.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: d.cfg.Username,
		Token:    tok.AccessToken,
	}))
}

// IMAPMailbox implements Mailbox over a go-imap client
type IMAPMailbox struct {
	client *client.Client
	cutoff time.Time
}

// watch aborts the connection when ctx is done; go-imap v1 has no context support.
func (m *IMAPMailbox) watch(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() { _ = m.client.Terminate() })
}

// ListNewIDs searches UID cursor+1:* (and SINCE cutoff when configured)
func (m *IMAPMailbox) ListNewIDs(ctx context.Context, cursor uint32) ([]uint32, error) {
	defer m.watch(ctx)()

	if cursor == ^uint32(0) {
		return nil, nil
	}
	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(cursor+1, 0)
	if !m.cutoff.IsZero() {
		criteria.Since = m.cutoff
	}

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, &ProtocolError{Op: "search", Err: err}
	}

	// "n:*" always matches the highest UID, even when it is below n.
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > cursor {
			out = append(out, uid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// FetchRaw fetches BODY.PEEK[] for one UID
func (m *IMAPMailbox) FetchRaw(ctx context.Context, uid uint32) ([]byte, error) {
	defer m.watch(ctx)()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		if msg.Uid != uid {
			continue
		}
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		raw, readErr = io.ReadAll(r)
	}

	if err := <-done; err != nil {
		return nil, &ProtocolError{Op: fmt.Sprintf("fetch %d", uid), Err: err}
	}
	if readErr != nil {
		return nil, &ProtocolError{Op: fmt.Sprintf("fetch %d", uid), Err: readErr}
	}
	if raw == nil {
		return nil, &ProtocolError{Op: fmt.Sprintf("fetch %d", uid), Err: fmt.Errorf("no body returned")}
	}
	return raw, nil
}

// MarkSeen adds the \Seen flag to one UID
func (m *IMAPMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	defer m.watch(ctx)()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return &ProtocolError{Op: fmt.Sprintf("store %d", uid), Err: err}
	}
	return nil
}

// Close logs out of the server
func (m *IMAPMailbox) Close() error {
	return m.client.Logout()
}
