package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEMessage_Alternative(t *testing.T) {
	raw, err := buildMIMEMessage(Email{
		FromName: "Shirly Shop",
		From:     "orders@shirly.shop",
		To:       []string{"ana@example.com"},
		Subject:  "Order #42 confirmed",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
		Headers:  map[string]string{"X-Order-ID": "42", "X-Bad": "a\r\nBcc: evil@example.com"},
	}, "shirly.shop")
	require.NoError(t, err)

	assert.Contains(t, raw, "From: Shirly Shop <orders@shirly.shop>\r\n")
	assert.Contains(t, raw, "To: ana@example.com\r\n")
	assert.Contains(t, raw, "@shirly.shop>\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, raw, "X-Order-ID: 42\r\n")
	assert.NotContains(t, raw, "evil@example.com")
	assert.Less(t, strings.Index(raw, "plain"), strings.Index(raw, "<p>html</p>"))
}

func TestBuildMIMEMessage_SinglePartAndValidation(t *testing.T) {
	raw, err := buildMIMEMessage(Email{From: "a@x.io", To: []string{"b@x.io"}, Subject: "Grüße", TextBody: "hi"}, "x.io")
	require.NoError(t, err)
	assert.NotContains(t, raw, "multipart")
	assert.Contains(t, raw, "Subject: =?utf-8?q?")

	_, err = buildMIMEMessage(Email{From: "a@x.io", Subject: "s", TextBody: "t"}, "x.io")
	assert.Error(t, err)
	_, err = buildMIMEMessage(Email{From: "a@x.io", To: []string{"b@x.io\r\nBcc: c@x.io"}, Subject: "s", TextBody: "t"}, "x.io")
	assert.Error(t, err)
	_, err = buildMIMEMessage(Email{From: "a@x.io", To: []string{"b@x.io"}, Subject: "s"}, "x.io")
	assert.Error(t, err)
}

func TestMock(t *testing.T) {
	m := &Mock{}
	e := Email{From: "a@x.io", To: []string{"b@x.io"}, Cc: []string{"c@x.io"}, Subject: "s", TextBody: "t"}
	require.NoError(t, m.Send(context.Background(), e))
	require.Len(t, m.Sent(), 1)
	assert.Equal(t, []string{"b@x.io", "c@x.io"}, m.Sent()[0].AllRecipients())

	m.Err = errors.New("down")
	assert.Error(t, m.Send(context.Background(), e))
}
