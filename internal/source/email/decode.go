package email

import (
	"bufio"
	"bytes"
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"
)

// wordDecoder decodes RFC 2047 encoded words using the go-message charset
// registry, which covers the common non-UTF-8 mail charsets.
var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// ParseHeaders reads the header block of a raw RFC 5322 message and
// returns its decoded From and Subject. A malformed line does not fail the
// message: the fields before it are kept and the rest of the block is
// treated as body.
func ParseHeaders(raw []byte) *Headers {
	if !bytes.Contains(raw, []byte("\n\n")) && !bytes.Contains(raw, []byte("\r\n\r\n")) {
		// Header-only payload: terminate it so the reader sees a
		// complete block.
		raw = append(append([]byte{}, raw...), '\r', '\n', '\r', '\n')
	}

	// On a malformed line ReadHeader still returns the fields read before
	// it; the remainder is treated as body.
	h, _ := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))

	return &Headers{
		From:    DecodeHeader(h.Get("From")),
		Subject: DecodeHeader(h.Get("Subject")),
	}
}

// DecodeHeader decodes a header value that may contain encoded words.
// Words are decoded with their declared charset; text without a declared
// charset is taken as UTF-8. Invalid sequences and unknown charsets never
// fail: the raw value is kept and made valid UTF-8.
func DecodeHeader(value string) string {
	if value == "" {
		return ""
	}

	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		decoded = value
	}

	return strings.ToValidUTF8(decoded, "�")
}
