package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

const (
	UnknownSender = "(unknown)"
	UnknownDate   = "(unknown date)"

	receivedLayout = "2006-01-02 15:04"
	snippetMaxLen  = 140
)

// ParsedMessage holds the fields extracted from a raw message
type ParsedMessage struct {
	Subject  string
	Sender   string
	Received string
	Body     string
	Snippet  string
}

// ParseMessage extracts sender, received time (rendered in loc) and the plain-text body.
func ParseMessage(raw []byte, loc *time.Location) (*ParsedMessage, error) {
	if loc == nil {
		loc = time.Local
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	mr := mail.NewReader(entity)

	parsed := &ParsedMessage{
		Sender:   UnknownSender,
		Received: UnknownDate,
	}

	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	} else {
		parsed.Subject = mr.Header.Get("Subject")
	}

	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 && addrs[0].Address != "" {
		parsed.Sender = addrs[0].Address
	}

	if mr.Header.Get("Date") != "" {
		if date, err := mr.Header.Date(); err == nil {
			parsed.Received = date.In(loc).Format(receivedLayout)
		}
	}

	body, err := readPlainText(mr)
	if err != nil {
		return nil, err
	}
	parsed.Body = body
	parsed.Snippet = Snippet(body)
	return parsed, nil
}

func readPlainText(mr *mail.Reader) (string, error) {
	multipart := strings.HasPrefix(strings.ToLower(mr.Header.Get("Content-Type")), "multipart/")

	var body strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				logrus.Debugf("Keeping undecoded part: %v", err)
			} else {
				return body.String(), fmt.Errorf("failed to read part: %w", err)
			}
		}
		if p == nil {
			continue
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if multipart && contentType != "text/plain" {
			continue
		}

		content, err := io.ReadAll(p.Body)
		if err != nil {
			logrus.Debugf("Failed to read part body: %v", err)
		}
		body.WriteString(strings.ToValidUTF8(string(content), ""))
		if multipart {
			body.WriteString("\n")
		}
	}
	return body.String(), nil
}

// Snippet returns the first line of the trimmed body, at most 140 runes.
func Snippet(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}
	line := strings.SplitN(trimmed, "\n", 2)[0]
	return truncateRunes(strings.TrimRight(line, "\r"), snippetMaxLen)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
