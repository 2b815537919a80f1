package project

import (
	"github.com/google/uuid"

	"sessionctl/internal/chain"
	"sessionctl/internal/logging"
	"sessionctl/internal/session"
)

type SplitResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// NewSessionID owns the records before the split point.
	NewSessionID           string `json:"new_session_id,omitempty"`
	MovedRecords           int    `json:"moved_records"`
	ContinuationDuplicated bool   `json:"continuation_duplicated"`
}

type Splitter struct {
	Store  *session.Store
	Logger logging.Logger
}

func NewSplitter(store *session.Store) *Splitter {
	return &Splitter{Store: store, Logger: store.Logger}
}

// Split partitions one session log in two at the record identified by
// atUUID. Records before the split point move to a freshly allocated session
// id; the split point and everything after keep the original id and file.
// Both resulting chains are repaired. Refusals ("not found", "cannot split
// at first message") come back inside the result; the error return is for
// I/O only.
func (sp *Splitter) Split(project, sessionID, atUUID string) (SplitResult, error) {
	path := sp.Store.SessionPath(project, sessionID)
	records, err := sp.Store.ReadLog(path)
	if err != nil {
		return SplitResult{}, err
	}

	idx := -1
	for i, rec := range records {
		if cr, ok := session.AsChain(rec); ok && cr.Identity() == atUUID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SplitResult{Error: "not found"}, nil
	}
	if idx == 0 {
		return SplitResult{Error: "cannot split at first message"}, nil
	}

	newID := uuid.NewString()

	older := make([]session.Record, 0, idx+2)
	olderIDs := make(map[string]bool, idx)
	for _, rec := range records[:idx] {
		stamped, err := session.WithSessionID(rec, newID)
		if err != nil {
			return SplitResult{}, err
		}
		older = append(older, stamped)
		if cr, ok := session.AsChain(rec); ok {
			olderIDs[cr.Identity()] = true
		}
	}

	newer := make([]session.Record, len(records[idx:]))
	copy(newer, records[idx:])

	// The split point becomes the root of the surviving chain.
	splitTurn, _ := newer[0].(*session.Turn)
	root, err := session.Reparent(newer[0].(session.ChainRecord), session.NullLink())
	if err != nil {
		return SplitResult{}, err
	}
	newer[0] = root
	if t, ok := root.(*session.Turn); ok {
		if reason, rejected := RejectionReason(t); rejected {
			rewritten, err := session.RewriteText(t, reason)
			if err != nil {
				return SplitResult{}, err
			}
			newer[0] = rewritten
		}
	}

	// A continuation marker at the split point stays as the new root and is
	// also duplicated into the older partition as its terminal record, so
	// both halves read coherently.
	duplicated := false
	if splitTurn != nil && IsContinuation(splitTurn) {
		dup, err := session.WithUUID(splitTurn, uuid.NewString())
		if err != nil {
			return SplitResult{}, err
		}
		stamped, err := session.WithSessionID(dup, newID)
		if err != nil {
			return SplitResult{}, err
		}
		older = append(older, stamped)
		duplicated = true
	}

	// Keep a summary on the detached half: clone the most recent one,
	// repointed at the older partition's first identity bearer.
	if firstOlder := firstChainID(older); firstOlder != "" {
		if sum := lastSummary(records); sum != nil {
			clone, err := session.RepointSummary(sum, firstOlder)
			if err != nil {
				return SplitResult{}, err
			}
			stamped, err := session.WithSessionID(clone, newID)
			if err != nil {
				return SplitResult{}, err
			}
			older = append(older, stamped)
		}
	}

	older, _, err = chain.AutoRepair(older)
	if err != nil {
		return SplitResult{}, err
	}
	newer, _, err = chain.AutoRepair(newer)
	if err != nil {
		return SplitResult{}, err
	}

	if err := sp.Store.WriteLog(sp.Store.SessionPath(project, newID), older); err != nil {
		return SplitResult{}, err
	}
	if err := sp.Store.WriteLog(path, newer); err != nil {
		return SplitResult{}, err
	}

	if err := sp.reattachSidechains(project, sessionID, newID, olderIDs); err != nil {
		return SplitResult{}, err
	}

	sp.Logger.Info("session split", map[string]interface{}{
		"project": project,
		"session": sessionID,
		"new":     newID,
		"moved":   idx,
	})
	return SplitResult{
		Success:                true,
		NewSessionID:           newID,
		MovedRecords:           idx,
		ContinuationDuplicated: duplicated,
	}, nil
}

// reattachSidechains restamps sidechain logs owned by the original session
// whose records hang off the older partition. Sidechains tied to the newer
// half keep their ownership untouched.
func (sp *Splitter) reattachSidechains(project, sessionID, newID string, olderIDs map[string]bool) error {
	paths, err := sp.Store.SidechainLogs(project)
	if err != nil {
		return err
	}
	for _, path := range paths {
		owner, err := sp.Store.OwnerSession(path)
		if err != nil || owner != sessionID {
			continue
		}
		records, err := sp.Store.ReadLogLenient(path)
		if err != nil {
			continue
		}
		if !touchesPartition(records, olderIDs) {
			continue
		}
		restamped := make([]session.Record, len(records))
		for i, rec := range records {
			stamped, err := session.WithSessionID(rec, newID)
			if err != nil {
				return err
			}
			restamped[i] = stamped
		}
		if err := sp.Store.WriteLog(path, restamped); err != nil {
			return err
		}
	}
	return nil
}

func touchesPartition(records []session.Record, ids map[string]bool) bool {
	for _, rec := range records {
		cr, ok := session.AsChain(rec)
		if !ok {
			continue
		}
		if ids[cr.Identity()] {
			return true
		}
		if link := cr.Link(); link.Present && ids[link.UUID] {
			return true
		}
	}
	return false
}

func firstChainID(records []session.Record) string {
	for _, rec := range records {
		if cr, ok := session.AsChain(rec); ok {
			return cr.Identity()
		}
	}
	return ""
}

func lastSummary(records []session.Record) *session.Summary {
	var last *session.Summary
	for _, rec := range records {
		if sum, ok := rec.(*session.Summary); ok {
			last = sum
		}
	}
	return last
}
