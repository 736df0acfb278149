package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/onnwee/chat-rewind/replay"
)

// HTML renders the transcript as a single self-contained document: embedded
// styling, no external references, one entry per message with role badges
// and a verified marker. All message content goes through html/template
// escaping.
func HTML(t *replay.Transcript) ([]byte, error) {
	view := htmlView{
		Title:   t.Title,
		Channel: t.ChannelName,
		Count:   len(t.Messages),
	}
	if view.Title == "" {
		view.Title = "Chat Replay"
	}
	for _, m := range t.Messages {
		view.Messages = append(view.Messages, htmlMessage{
			Time:        renderTime(m),
			Author:      m.AuthorName,
			Text:        m.Text,
			IsVerified:  m.IsVerified,
			IsOwner:     m.IsOwner,
			IsModerator: m.IsModerator,
			IsMember:    m.IsSponsorOrMember,
		})
	}
	var buf bytes.Buffer
	if err := chatTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// renderTime prefers the absolute wall-clock time; transcripts whose source
// gave only relative offsets fall back to a replay position.
func renderTime(m replay.ChatMessage) string {
	if !m.TimestampUTC.IsZero() {
		return m.TimestampUTC.UTC().Format("15:04:05")
	}
	d := time.Duration(m.OffsetSeconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	return fmt.Sprintf("%d:%02d:%02d", h, int(d.Minutes())%60, int(d.Seconds())%60)
}

type htmlView struct {
	Title    string
	Channel  string
	Count    int
	Messages []htmlMessage
}

type htmlMessage struct {
	Time        string
	Author      string
	Text        string
	IsVerified  bool
	IsOwner     bool
	IsModerator bool
	IsMember    bool
}

var chatTemplate = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} - Chat Replay</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: "Roboto", "Arial", sans-serif; background-color: #0f0f0f; color: #fff; padding: 20px; }
.container { max-width: 1200px; margin: 0 auto; }
.header { background-color: #212121; padding: 20px; border-radius: 12px; margin-bottom: 20px; }
.header h1 { font-size: 24px; margin-bottom: 10px; }
.header .channel { color: #aaa; font-size: 14px; }
.stats { background-color: #212121; padding: 15px 20px; border-radius: 12px; margin-bottom: 20px; color: #aaa; font-size: 14px; }
.stats strong { color: #fff; }
.chat-container { background-color: #212121; border-radius: 12px; padding: 20px; }
.chat-message { display: flex; padding: 8px 0; align-items: flex-start; }
.chat-message:hover { background-color: #2a2a2a; }
.timestamp { color: #717171; font-size: 12px; min-width: 80px; margin-right: 15px; }
.author { font-weight: 500; margin-right: 8px; color: #fff; font-size: 13px; }
.author.owner { color: #ffd600; }
.author.moderator { color: #5e84f1; }
.author.member { color: #0f9d58; }
.verified { display: inline-block; background-color: #606060; color: #fff; border-radius: 50%; width: 14px; height: 14px; font-size: 10px; text-align: center; line-height: 14px; margin-left: 4px; }
.badge { display: inline-block; color: #fff; font-size: 10px; padding: 2px 6px; border-radius: 2px; margin-right: 6px; font-weight: 500; }
.badge.owner { background-color: #ffd600; color: #0f0f0f; }
.badge.moderator { background-color: #5e84f1; }
.badge.member { background-color: #0f9d58; }
.message { color: #fff; font-size: 13px; line-height: 18px; word-wrap: break-word; flex: 1; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>{{.Title}}</h1>
<div class="channel">{{.Channel}}</div>
</div>
<div class="stats"><strong>{{.Count}}</strong> messages</div>
<div class="chat-container">
{{range .Messages}}<div class="chat-message">
<div class="timestamp">{{.Time}}</div>
<div class="message-content">
<div class="author-line">
{{if .IsOwner}}<span class="badge owner">OWNER</span>{{end}}{{if .IsModerator}}<span class="badge moderator">MOD</span>{{end}}{{if .IsMember}}<span class="badge member">MEMBER</span>{{end}}<span class="author{{if .IsOwner}} owner{{else if .IsModerator}} moderator{{else if .IsMember}} member{{end}}">{{.Author}}</span>{{if .IsVerified}}<span class="verified">&#10003;</span>{{end}}
</div>
<div class="message">{{.Text}}</div>
</div>
</div>
{{end}}</div>
</div>
</body>
</html>
`))
