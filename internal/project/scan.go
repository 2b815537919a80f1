package project

import (
	"sort"
	"sync"
	"time"

	"sessionctl/internal/chain"
	"sessionctl/internal/logging"
	"sessionctl/internal/session"
)

// SessionInfo is the per-session aggregate produced by a project scan.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	Records      int       `json:"records"`
	LastActivity time.Time `json:"last_activity"`
	Summary      string    `json:"summary,omitempty"`
	Findings     int       `json:"findings"`
}

type Scanner struct {
	Store  *session.Store
	Logger logging.Logger
	// Parallel bounds concurrent log reads during the scan.
	Parallel int
}

func NewScanner(store *session.Store, parallel int) *Scanner {
	if parallel <= 0 {
		parallel = 16
	}
	return &Scanner{Store: store, Logger: store.Logger, Parallel: parallel}
}

// ListSessions reads every primary log of a project concurrently and
// aggregates record counts, last activity, findings, and the displayed
// summary. Read-only; logs are independent, so no cross-log ordering is
// needed beyond the final sort.
func (sc *Scanner) ListSessions(project string) ([]SessionInfo, error) {
	ids, err := sc.Store.SessionIDs(project)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, len(ids))
	sem := make(chan struct{}, sc.Parallel)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			infos[i] = sc.inspect(project, id)
		}(i, id)
	}
	wg.Wait()

	buckets, err := NewResolver(sc.Store).ResolveSummaries(project)
	if err == nil {
		for i := range infos {
			if sum, ok := CurrentSummary(buckets[infos[i].SessionID]); ok {
				infos[i].Summary = sum.Text
			}
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].LastActivity.Equal(infos[j].LastActivity) {
			return infos[i].SessionID < infos[j].SessionID
		}
		return infos[i].LastActivity.After(infos[j].LastActivity)
	})
	return infos, nil
}

func (sc *Scanner) inspect(project, id string) SessionInfo {
	info := SessionInfo{SessionID: id}
	records, err := sc.Store.ReadLogLenient(sc.Store.SessionPath(project, id))
	if err != nil {
		sc.Logger.Warn("unreadable session log", map[string]interface{}{
			"project": project, "session": id, "error": err.Error(),
		})
		return info
	}
	info.Records = len(records)
	info.Findings = len(chain.Validate(records).Findings)
	for _, rec := range records {
		var ts time.Time
		switch v := rec.(type) {
		case *session.Turn:
			ts = v.Timestamp
		case *session.Progress:
			ts = v.Timestamp
		case *session.Snapshot:
			ts = v.Timestamp
		}
		if ts.After(info.LastActivity) {
			info.LastActivity = ts
		}
	}
	return info
}
