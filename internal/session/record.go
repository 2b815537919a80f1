package session

import "time"

// Kind discriminates the record variants found in a session log.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
	KindSummary   Kind = "summary"
	KindSnapshot  Kind = "file-history-snapshot"
	KindProgress  Kind = "progress"
)

// Record is one decoded line of a session log. Every variant retains the raw
// line bytes so fields this tool never inspects survive a rewrite verbatim.
type Record interface {
	Kind() Kind
	Raw() []byte
}

// ChainRecord is implemented by the record kinds that carry a uuid and take
// part in the parent-pointer chain. Snapshots and summaries deliberately do
// not implement it; they are keyed by messageId and leafUuid instead.
type ChainRecord interface {
	Record
	Identity() string
	Link() ParentLink
}

// ParentLink is the tri-state parentUuid field. Absent (Present false) is
// never a valid shape; an explicit null marks the root of a chain.
type ParentLink struct {
	Present bool
	UUID    string
}

func NullLink() ParentLink { return ParentLink{Present: true} }

func LinkTo(id string) ParentLink { return ParentLink{Present: true, UUID: id} }

func (p ParentLink) IsNull() bool { return p.Present && p.UUID == "" }

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one content block of a turn message. Plain string content is
// normalized to a single text block during parsing.
type Block struct {
	Type      BlockType
	Text      string
	ToolID    string // tool_use id
	ToolUseID string // tool_result back-reference
	IsError   bool
	Content   string // flattened tool_result content
}

type Message struct {
	Role   string
	Blocks []Block
}

// Turn is a user, assistant, or system record.
type Turn struct {
	Type             Kind
	UUID             string
	Parent           ParentLink
	SessionID        string
	Timestamp        time.Time
	IsSidechain      bool
	IsMeta           bool
	IsCompactSummary bool
	Message          Message

	raw []byte
}

func (t *Turn) Kind() Kind       { return t.Type }
func (t *Turn) Raw() []byte      { return t.raw }
func (t *Turn) Identity() string { return t.UUID }
func (t *Turn) Link() ParentLink { return t.Parent }

// ToolUseIDs returns the ids of all tool_use blocks in the turn.
func (t *Turn) ToolUseIDs() []string {
	var ids []string
	for _, b := range t.Message.Blocks {
		if b.Type == BlockToolUse && b.ToolID != "" {
			ids = append(ids, b.ToolID)
		}
	}
	return ids
}

// ToolResultIDs returns the tool_use ids referenced by tool_result blocks.
func (t *Turn) ToolResultIDs() []string {
	var ids []string
	for _, b := range t.Message.Blocks {
		if b.Type == BlockToolResult && b.ToolUseID != "" {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}

// Text returns the concatenated text blocks of the turn.
func (t *Turn) Text() string {
	out := ""
	for _, b := range t.Message.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// Summary is a digest record pointing at the record it describes, which may
// live in a sibling log of the same project.
type Summary struct {
	Text      string
	LeafUUID  string
	Timestamp time.Time

	raw []byte
}

func (s *Summary) Kind() Kind  { return KindSummary }
func (s *Summary) Raw() []byte { return s.raw }

// Snapshot is a file-history checkpoint marker. It annotates a turn by
// messageId and never participates in the chain.
type Snapshot struct {
	MessageID string
	Timestamp time.Time

	raw []byte
}

func (s *Snapshot) Kind() Kind  { return KindSnapshot }
func (s *Snapshot) Raw() []byte { return s.raw }

// Progress is a hook/progress event. It carries a uuid and joins the chain
// when one is present.
type Progress struct {
	UUID      string
	Parent    ParentLink
	HookEvent string
	Timestamp time.Time

	raw []byte
}

func (p *Progress) Kind() Kind       { return KindProgress }
func (p *Progress) Raw() []byte      { return p.raw }
func (p *Progress) Identity() string { return p.UUID }
func (p *Progress) Link() ParentLink { return p.Parent }

// Unknown is any record kind this tool has no behavior for (title overrides,
// queued-command markers, future additions). Carried through untouched.
type Unknown struct {
	Type string

	raw []byte
}

func (u *Unknown) Kind() Kind  { return Kind(u.Type) }
func (u *Unknown) Raw() []byte { return u.raw }

// AsChain returns rec as a chain participant when it bears an identity.
func AsChain(rec Record) (ChainRecord, bool) {
	cr, ok := rec.(ChainRecord)
	if !ok || cr.Identity() == "" {
		return nil, false
	}
	return cr, true
}
