package session

import (
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ParseLine decodes one log line into its record variant. The input bytes
// are copied, so callers may reuse their buffer.
func ParseLine(line []byte) (Record, error) {
	if !gjson.ValidBytes(line) {
		return nil, errors.New("invalid json")
	}
	typ := gjson.GetBytes(line, "type").String()
	switch Kind(typ) {
	case KindUser, KindAssistant, KindSystem:
		return parseTurn(Kind(typ), line), nil
	case KindSummary:
		return &Summary{
			Text:      gjson.GetBytes(line, "summary").String(),
			LeafUUID:  gjson.GetBytes(line, "leafUuid").String(),
			Timestamp: parseTime(gjson.GetBytes(line, "timestamp").String()),
			raw:       cloneBytes(line),
		}, nil
	case KindSnapshot:
		ts := gjson.GetBytes(line, "snapshot.timestamp").String()
		if ts == "" {
			ts = gjson.GetBytes(line, "timestamp").String()
		}
		return &Snapshot{
			MessageID: gjson.GetBytes(line, "messageId").String(),
			Timestamp: parseTime(ts),
			raw:       cloneBytes(line),
		}, nil
	case KindProgress:
		event := gjson.GetBytes(line, "hookEventName").String()
		if event == "" {
			event = gjson.GetBytes(line, "event").String()
		}
		return &Progress{
			UUID:      gjson.GetBytes(line, "uuid").String(),
			Parent:    parseParent(line),
			HookEvent: event,
			Timestamp: parseTime(gjson.GetBytes(line, "timestamp").String()),
			raw:       cloneBytes(line),
		}, nil
	default:
		if typ == "" {
			return nil, errors.New("missing type field")
		}
		return &Unknown{Type: typ, raw: cloneBytes(line)}, nil
	}
}

func parseTurn(kind Kind, line []byte) *Turn {
	t := &Turn{
		Type:             kind,
		UUID:             gjson.GetBytes(line, "uuid").String(),
		Parent:           parseParent(line),
		SessionID:        gjson.GetBytes(line, "sessionId").String(),
		Timestamp:        parseTime(gjson.GetBytes(line, "timestamp").String()),
		IsSidechain:      gjson.GetBytes(line, "isSidechain").Bool(),
		IsMeta:           gjson.GetBytes(line, "isMeta").Bool(),
		IsCompactSummary: gjson.GetBytes(line, "isCompactSummary").Bool(),
		raw:              cloneBytes(line),
	}
	msg := gjson.GetBytes(line, "message")
	t.Message.Role = msg.Get("role").String()
	content := msg.Get("content")
	switch {
	case content.IsArray():
		content.ForEach(func(_, block gjson.Result) bool {
			t.Message.Blocks = append(t.Message.Blocks, parseBlock(block))
			return true
		})
	case content.Type == gjson.String:
		t.Message.Blocks = []Block{{Type: BlockText, Text: content.String()}}
	}
	return t
}

func parseBlock(block gjson.Result) Block {
	b := Block{Type: BlockType(block.Get("type").String())}
	switch b.Type {
	case BlockText:
		b.Text = block.Get("text").String()
	case BlockToolUse:
		b.ToolID = block.Get("id").String()
	case BlockToolResult:
		b.ToolUseID = block.Get("tool_use_id").String()
		b.IsError = block.Get("is_error").Bool()
		b.Content = flattenContent(block.Get("content"))
	}
	return b
}

// flattenContent reduces a tool_result's content (string or block array) to
// plain text for classification.
func flattenContent(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	return strings.Join(parts, "\n")
}

func parseParent(line []byte) ParentLink {
	p := gjson.GetBytes(line, "parentUuid")
	if !p.Exists() {
		return ParentLink{}
	}
	if p.Type == gjson.Null {
		return NullLink()
	}
	return LinkTo(p.String())
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Time{}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
