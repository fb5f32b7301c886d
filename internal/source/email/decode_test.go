package email

import (
	"encoding/base64"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// encodedWord builds a B-encoded RFC 2047 word for text in the given charset.
func encodedWord(t *testing.T, name string, enc encoding.Encoding, text string) string {
	t.Helper()

	b, err := enc.NewEncoder().String(text)
	require.NoError(t, err)
	return "=?" + name + "?B?" + base64.StdEncoding.EncodeToString([]byte(b)) + "?="
}

func TestDecodeHeaderDeclaredCharsets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "windows-1251",
			in:   encodedWord(t, "windows-1251", charmap.Windows1251, "Счёт invoice"),
			want: "Счёт invoice",
		},
		{
			name: "koi8-r",
			in:   encodedWord(t, "KOI8-R", charmap.KOI8R, "Встреча meeting"),
			want: "Встреча meeting",
		},
		{
			name: "iso-8859-1 q-encoding",
			in:   "=?ISO-8859-1?Q?Caf=E9_promo?=",
			want: "Café promo",
		},
		{
			name: "utf-8 mixed with plain text",
			in:   "Re: =?UTF-8?B?w5xiZXJ3ZWlzdW5n?= done",
			want: "Re: Überweisung done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeHeader(tt.in))
		})
	}
}

func TestDecodeHeaderUndeclaredIsUTF8(t *testing.T) {
	assert.Equal(t, "Grüße vom meeting", DecodeHeader("Grüße vom meeting"))
	assert.Equal(t, "", DecodeHeader(""))
}

func TestDecodeHeaderNeverFails(t *testing.T) {
	unknown := "=?x-made-up?Q?hello?="
	assert.Equal(t, unknown, DecodeHeader(unknown))

	got := DecodeHeader("bad \xff\xfe bytes")
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, "bytes")
}

func TestParseHeaders(t *testing.T) {
	raw := "From: =?UTF-8?Q?J=C3=BCrgen?= <j@example.com>\r\n" +
		"Subject: " + encodedWord(t, "windows-1252", charmap.Windows1252, "Rechnung – invoice") + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Body text\r\n"

	h := ParseHeaders([]byte(raw))
	assert.Equal(t, "Jürgen <j@example.com>", h.From)
	assert.Equal(t, "Rechnung – invoice", h.Subject)
}

func TestParseHeadersMissingSubject(t *testing.T) {
	h := ParseHeaders([]byte("From: a@example.com\r\n\r\nhello\r\n"))
	assert.Equal(t, "", h.Subject)
	assert.Equal(t, "a@example.com", h.From)
}

func TestParseHeadersHeaderOnly(t *testing.T) {
	h := ParseHeaders([]byte("Subject: promo\r\nFrom: b@example.com"))
	assert.Equal(t, "promo", h.Subject)
	assert.Equal(t, "b@example.com", h.From)
}

func TestParseHeadersMalformedLine(t *testing.T) {
	raw := "From: =?UTF-8?Q?J=C3=BCrgen?= <j@example.com>\r\n" +
		"Subject: Your invoice\r\n" +
		"  for May\r\n" +
		"this line has no colon\r\n" +
		"X-Late: ignored\r\n" +
		"\r\n" +
		"Body\r\n"

	h := ParseHeaders([]byte(raw))
	assert.Equal(t, "Jürgen <j@example.com>", h.From)
	assert.Equal(t, "Your invoice for May", h.Subject)
}

func TestParseHeadersFieldsAfterMalformedLineAreBody(t *testing.T) {
	raw := "From: a@example.com\n" +
		"garbage\n" +
		"Subject: meeting\n" +
		"\n"

	h := ParseHeaders([]byte(raw))
	assert.Equal(t, "a@example.com", h.From)
	assert.Empty(t, h.Subject)
}

func TestParseHeadersGarbage(t *testing.T) {
	h := ParseHeaders([]byte("\x00\x01 not a message at all"))
	assert.Empty(t, h.From)
	assert.Empty(t, h.Subject)
}
