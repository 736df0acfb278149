// Package export renders a frozen transcript into the two download formats:
// delimited text and a self-contained styled HTML document. Both renderers
// are pure functions of the transcript and byte-deterministic.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/onnwee/chat-rewind/replay"
)

// csvHeader is the fixed column order of the delimited export.
var csvHeader = []string{
	"timestamp", "author", "message",
	"is_verified", "is_owner", "is_sponsor_or_member", "is_moderator",
}

// CSV renders one row per message. Timestamps are absolute RFC3339 UTC;
// quoting follows encoding/csv (RFC 4180).
func CSV(t *replay.Transcript) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range t.Messages {
		row := []string{
			m.TimestampUTC.UTC().Format(time.RFC3339),
			m.AuthorName,
			m.Text,
			strconv.FormatBool(m.IsVerified),
			strconv.FormatBool(m.IsOwner),
			strconv.FormatBool(m.IsSponsorOrMember),
			strconv.FormatBool(m.IsModerator),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
