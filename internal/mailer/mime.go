package mailer

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
	"time"
)

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func validate(e Email) error {
	switch {
	case len(e.To) == 0:
		return errors.New("mailer: at least one recipient required")
	case e.From == "":
		return errors.New("mailer: from address required")
	case e.Subject == "":
		return errors.New("mailer: subject required")
	case e.TextBody == "" && e.HTMLBody == "":
		return errors.New("mailer: text or html body required")
	}
	for _, r := range e.AllRecipients() {
		if strings.ContainsAny(r, "\r\n") {
			return errors.New("mailer: invalid recipient")
		}
	}
	return nil
}

func writeHeader(b *strings.Builder, k, v string) {
	fmt.Fprintf(b, "%s: %s\r\n", k, v)
}

func writePart(b *strings.Builder, contentType, body string) {
	writeHeader(b, "Content-Type", contentType+"; charset=UTF-8")
	writeHeader(b, "Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
}

// buildMIMEMessage renders e as an RFC 5322 message; text plus html becomes
// multipart/alternative.
func buildMIMEMessage(e Email, messageIDDomain string) (string, error) {
	if err := validate(e); err != nil {
		return "", err
	}

	var b strings.Builder
	writeHeader(&b, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&b, "Message-ID", fmt.Sprintf("<%s@%s>", randomHex(12), messageIDDomain))
	writeHeader(&b, "From", formatAddress(e.FromName, e.From))
	writeHeader(&b, "To", strings.Join(e.To, ", "))
	if len(e.Cc) > 0 {
		writeHeader(&b, "Cc", strings.Join(e.Cc, ", "))
	}
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	writeHeader(&b, "MIME-Version", "1.0")

	keys := make([]string, 0, len(e.Headers))
	for k, v := range e.Headers {
		if k != "" && v != "" && !strings.ContainsAny(k+v, "\r\n") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&b, k, e.Headers[k])
	}

	switch {
	case e.TextBody != "" && e.HTMLBody != "":
		boundary := "alt-" + randomHex(12)
		writeHeader(&b, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString("\r\n")
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		writePart(&b, "text/plain", e.TextBody)
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		writePart(&b, "text/html", e.HTMLBody)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case e.HTMLBody != "":
		writePart(&b, "text/html", e.HTMLBody)
	default:
		writePart(&b, "text/plain", e.TextBody)
	}
	return b.String(), nil
}
