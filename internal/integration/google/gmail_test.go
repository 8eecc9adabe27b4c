package google

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func TestDecodeBodyUnpaddedBase64URL(t *testing.T) {
	// Gmail omits padding, so the 18-char input below has no trailing "==".
	assert.Equal(t, "hello world!!", decodeBody("aGVsbG8gd29ybGQhIQ"))
}

func TestDecodeBodyPaddedAndStandard(t *testing.T) {
	assert.Equal(t, "hello world!!", decodeBody(base64.URLEncoding.EncodeToString([]byte("hello world!!"))))
	assert.Equal(t, "hello world!!", decodeBody(base64.StdEncoding.EncodeToString([]byte("hello world!!"))))
	assert.Equal(t, "", decodeBody("not base64 at all!"))
}

func TestFlattenPrefersPlainTextPart(t *testing.T) {
	msg := &gmail.Message{
		Id: "m1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Acme drive || Intern"},
				{Name: "From", Value: "cell@college.edu"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("<b>html</b>"))}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("plain text body"))}},
			},
		},
	}

	out := flatten(msg)
	assert.Equal(t, "m1", out.ID)
	assert.Equal(t, "Acme drive || Intern", out.Subject)
	assert.Equal(t, "cell@college.edu", out.From)
	assert.Equal(t, "plain text body", out.Body)
}

func TestFlattenFallsBackToSnippet(t *testing.T) {
	msg := &gmail.Message{
		Id:      "m2",
		Snippet: "Acme is hiring interns",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: "not base64 at all!"},
		},
	}

	assert.Equal(t, "Acme is hiring interns", flatten(msg).Body)
}
