package session

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Mutations are expressed as patches against the raw line followed by a
// re-parse, so every field this tool does not model is preserved verbatim
// and no record is ever mutated through a shared reference.

// Reparent returns a copy of rec with its parentUuid rewritten. A null or
// absent link is written as an explicit null.
func Reparent(rec ChainRecord, link ParentLink) (ChainRecord, error) {
	var raw []byte
	var err error
	if link.Present && link.UUID != "" {
		raw, err = sjson.SetBytes(rec.Raw(), "parentUuid", link.UUID)
	} else {
		raw, err = sjson.SetBytes(rec.Raw(), "parentUuid", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reparent %s: %w", rec.Identity(), err)
	}
	return reparseChain(raw)
}

// WithUUID returns a copy of rec under a fresh identity.
func WithUUID(rec ChainRecord, id string) (ChainRecord, error) {
	raw, err := sjson.SetBytes(rec.Raw(), "uuid", id)
	if err != nil {
		return nil, fmt.Errorf("set uuid: %w", err)
	}
	return reparseChain(raw)
}

// WithSessionID stamps rec with a new owning session id.
func WithSessionID(rec Record, sessionID string) (Record, error) {
	raw, err := sjson.SetBytes(rec.Raw(), "sessionId", sessionID)
	if err != nil {
		return nil, fmt.Errorf("set sessionId: %w", err)
	}
	out, err := ParseLine(raw)
	if err != nil {
		return nil, fmt.Errorf("reparse after restamp: %w", err)
	}
	return out, nil
}

// RepointSummary returns a copy of s targeting a different record.
func RepointSummary(s *Summary, leafUUID string) (*Summary, error) {
	raw, err := sjson.SetBytes(s.Raw(), "leafUuid", leafUUID)
	if err != nil {
		return nil, fmt.Errorf("set leafUuid: %w", err)
	}
	out, err := ParseLine(raw)
	if err != nil {
		return nil, fmt.Errorf("reparse summary: %w", err)
	}
	sum, ok := out.(*Summary)
	if !ok {
		return nil, fmt.Errorf("record is not a summary after repoint")
	}
	return sum, nil
}

// RewriteText replaces a turn's content with a single plain string.
func RewriteText(t *Turn, text string) (*Turn, error) {
	raw, err := sjson.SetBytes(t.Raw(), "message.content", text)
	if err != nil {
		return nil, fmt.Errorf("rewrite content: %w", err)
	}
	out, err := ParseLine(raw)
	if err != nil {
		return nil, fmt.Errorf("reparse turn: %w", err)
	}
	turn, ok := out.(*Turn)
	if !ok {
		return nil, fmt.Errorf("record is not a turn after rewrite")
	}
	return turn, nil
}

func reparseChain(raw []byte) (ChainRecord, error) {
	out, err := ParseLine(raw)
	if err != nil {
		return nil, fmt.Errorf("reparse after patch: %w", err)
	}
	cr, ok := out.(ChainRecord)
	if !ok {
		return nil, fmt.Errorf("record lost chain identity after patch")
	}
	return cr, nil
}
