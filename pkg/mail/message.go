package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// composeMessage renders headers and a quoted-printable body. Subjects are
// RFC 2047 encoded so accented text survives 7-bit relays.
func composeMessage(from string, to []string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", strings.Join(to, ", "))
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject)))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID(from))
	writeHeader(&buf, "MIME-Version", "1.0")

	text, html := msg.Text, msg.HTML
	switch {
	case text != "" && html != "":
		mw := multipart.NewWriter(&buf)
		writeHeader(&buf, "Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": mw.Boundary()}))
		buf.WriteString("\r\n")
		for _, part := range []struct{ mediaType, body string }{
			{"text/plain", text},
			{"text/html", html},
		} {
			w, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {part.mediaType + "; charset=UTF-8"},
				"Content-Transfer-Encoding": {"quoted-printable"},
			})
			if err != nil {
				return nil, fmt.Errorf("smtp: create %s part: %w", part.mediaType, err)
			}
			if err := writeQuotedPrintable(w, part.body); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("smtp: close multipart body: %w", err)
		}
	default:
		mediaType, body := "text/plain", text
		if html != "" {
			mediaType, body = "text/html", html
		}
		writeHeader(&buf, "Content-Type", mediaType+"; charset=UTF-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, body); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(dst io.Writer, body string) error {
	qp := quotedprintable.NewWriter(dst)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("smtp: encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return fmt.Errorf("smtp: encode body: %w", err)
	}
	return nil
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
