package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-sticky-go/internal/config"
)

func startTestServer(t *testing.T) (*memory.Backend, *config.IMAPConfig) {
	t.Helper()

	be := memory.New()
	s := server.New(be)
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })

	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return be, &config.IMAPConfig{
		Host:     host,
		Port:     port,
		Username: "username",
		Password: "password",
		Folder:   "INBOX",
		TLS:      false,
		Timeout:  5 * time.Second,
	}
}

func appendMessage(t *testing.T, be *memory.Backend, body string) {
	t.Helper()
	u, err := be.Login(nil, "username", "password")
	require.NoError(t, err)
	mbox, err := u.GetMailbox("INBOX")
	require.NoError(t, err)
	require.NoError(t, mbox.CreateMessage(nil, time.Now(), bytes.NewBufferString(body)))
}

func TestIMAPListFetchAndMarkSeen(t *testing.T) {
	be, cfg := startTestServer(t)
	appendMessage(t, be, "From: boss@example.com\r\nSubject: Budget\r\n\r\nApprove the budget today.\r\n")
	ctx := context.Background()

	dialer := NewIMAPDialer(cfg)
	require.True(t, dialer.Configured())

	mbox, err := dialer.Open(ctx)
	require.NoError(t, err)
	defer mbox.Close()

	uids, err := mbox.ListNewIDs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, uids, 2)
	assert.Less(t, uids[0], uids[1])

	newest := uids[1]
	raw, err := mbox.FetchRaw(ctx, newest)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Approve the budget today.")

	assert.NoError(t, mbox.MarkSeen(ctx, newest))

	u, err := be.Login(nil, "username", "password")
	require.NoError(t, err)
	backendMbox, err := u.GetMailbox("INBOX")
	require.NoError(t, err)
	var flags []string
	for _, msg := range backendMbox.(*memory.Mailbox).Messages {
		if msg.Uid == newest {
			flags = msg.Flags
		}
	}
	assert.Contains(t, flags, imap.SeenFlag)

	// Searching past the newest UID yields nothing even though "n:*" matches it.
	uids, err = mbox.ListNewIDs(ctx, newest)
	require.NoError(t, err)
	assert.Empty(t, uids)
}

func TestIMAPBadCredentialsIsTransportError(t *testing.T) {
	_, cfg := startTestServer(t)
	cfg.Password = "wrong"

	_, err := NewIMAPDialer(cfg).Open(context.Background())
	require.Error(t, err)
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestIMAPUnknownFolderIsProtocolError(t *testing.T) {
	_, cfg := startTestServer(t)
	cfg.Folder = "Nope"

	_, err := NewIMAPDialer(cfg).Open(context.Background())
	require.Error(t, err)
	var protocolErr *ProtocolError
	assert.True(t, errors.As(err, &protocolErr))
}

func TestIMAPUnreachableIsTransportError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	l.Close()

	cfg := &config.IMAPConfig{
		Host: "127.0.0.1", Port: addr.Port, Username: "u", Password: "p",
		Folder: "INBOX", Timeout: time.Second,
	}
	_, err = NewIMAPDialer(cfg).Open(context.Background())
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}
