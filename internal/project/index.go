// Package project implements whole-project operations over a collection of
// session logs: the global identity index, cross-file summary resolution,
// session splitting, orphan cleanup, and the bounded-parallel scan.
package project

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sessionctl/internal/logging"
	"sessionctl/internal/session"
)

// IndexEntry records which session log owns a uuid.
type IndexEntry struct {
	SessionID string
	Timestamp time.Time
}

// IdentityIndex maps every uuid (and snapshot messageId) in a project to its
// owning session. On a cross-log id collision the last log scanned wins;
// logs are scanned in sorted order, so the outcome is deterministic.
type IdentityIndex map[string]IndexEntry

// ResolvedSummary is a summary routed to the session owning its target.
type ResolvedSummary struct {
	Text          string
	LeafUUID      string
	SourceSession string
	// Timestamp is the effective display time: the target record's when
	// resolvable, otherwise the summary's own.
	Timestamp time.Time
}

type Resolver struct {
	Store  *session.Store
	Logger logging.Logger
}

func NewResolver(store *session.Store) *Resolver {
	return &Resolver{Store: store, Logger: store.Logger}
}

type logRef struct {
	Path      string
	SessionID string
}

func (r *Resolver) projectLogs(project string) ([]logRef, error) {
	ids, err := r.Store.SessionIDs(project)
	if err != nil {
		return nil, err
	}
	var refs []logRef
	for _, id := range ids {
		refs = append(refs, logRef{Path: r.Store.SessionPath(project, id), SessionID: id})
	}
	side, err := r.Store.SidechainLogs(project)
	if err != nil {
		return nil, err
	}
	for _, path := range side {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		refs = append(refs, logRef{Path: path, SessionID: stem})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

// BuildIdentityIndex scans every log of the project, primary and sidechain.
func (r *Resolver) BuildIdentityIndex(project string) (IdentityIndex, error) {
	idx := IdentityIndex{}
	refs, err := r.projectLogs(project)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		records, err := r.Store.ReadLogLenient(ref.Path)
		if err != nil {
			r.Logger.Warn("skipping unreadable log", map[string]interface{}{
				"path": ref.Path, "error": err.Error(),
			})
			continue
		}
		indexRecords(idx, ref.SessionID, records)
	}
	return idx, nil
}

func indexRecords(idx IdentityIndex, sessionID string, records []session.Record) {
	for _, rec := range records {
		switch v := rec.(type) {
		case *session.Snapshot:
			if v.MessageID != "" {
				idx[v.MessageID] = IndexEntry{SessionID: sessionID, Timestamp: v.Timestamp}
			}
		default:
			if cr, ok := session.AsChain(rec); ok {
				ts := time.Time{}
				switch t := rec.(type) {
				case *session.Turn:
					ts = t.Timestamp
				case *session.Progress:
					ts = t.Timestamp
				}
				idx[cr.Identity()] = IndexEntry{SessionID: sessionID, Timestamp: ts}
			}
		}
	}
}

// ResolveSummaries routes every summary in the project to the session owning
// its target record. Summaries whose target resolves nowhere are dropped.
// Each returned bucket is sorted so its first entry is the session's
// displayed summary.
func (r *Resolver) ResolveSummaries(project string) (map[string][]ResolvedSummary, error) {
	refs, err := r.projectLogs(project)
	if err != nil {
		return nil, err
	}

	idx := IdentityIndex{}
	type sourced struct {
		summary *session.Summary
		source  string
	}
	var found []sourced
	for _, ref := range refs {
		records, err := r.Store.ReadLogLenient(ref.Path)
		if err != nil {
			r.Logger.Warn("skipping unreadable log", map[string]interface{}{
				"path": ref.Path, "error": err.Error(),
			})
			continue
		}
		indexRecords(idx, ref.SessionID, records)
		for _, rec := range records {
			if sum, ok := rec.(*session.Summary); ok {
				found = append(found, sourced{summary: sum, source: ref.SessionID})
			}
		}
	}

	buckets := make(map[string][]ResolvedSummary)
	for _, f := range found {
		entry, ok := idx[f.summary.LeafUUID]
		if !ok {
			continue
		}
		ts := entry.Timestamp
		if ts.IsZero() {
			ts = f.summary.Timestamp
		}
		buckets[entry.SessionID] = append(buckets[entry.SessionID], ResolvedSummary{
			Text:          f.summary.Text,
			LeafUUID:      f.summary.LeafUUID,
			SourceSession: f.source,
			Timestamp:     ts,
		})
	}
	for id := range buckets {
		sortBucket(buckets[id])
	}
	return buckets, nil
}

// sortBucket orders ascending by effective timestamp; on equal timestamps
// the larger source session id wins (sorts first).
func sortBucket(bucket []ResolvedSummary) {
	sort.SliceStable(bucket, func(i, j int) bool {
		if bucket[i].Timestamp.Equal(bucket[j].Timestamp) {
			return bucket[i].SourceSession > bucket[j].SourceSession
		}
		return bucket[i].Timestamp.Before(bucket[j].Timestamp)
	})
}

// CurrentSummary picks the displayed summary of a sorted bucket.
func CurrentSummary(bucket []ResolvedSummary) (ResolvedSummary, bool) {
	if len(bucket) == 0 {
		return ResolvedSummary{}, false
	}
	return bucket[0], true
}

// LatestSummaryFor resolves the displayed summary of one session without a
// project-wide index: it collects this log's identities, searches every
// sibling log for summaries targeting them, and applies the same ordering.
func (r *Resolver) LatestSummaryFor(project, sessionID string) (ResolvedSummary, bool, error) {
	own, err := r.Store.ReadLogLenient(r.Store.SessionPath(project, sessionID))
	if err != nil {
		return ResolvedSummary{}, false, err
	}
	idx := IdentityIndex{}
	indexRecords(idx, sessionID, own)

	refs, err := r.projectLogs(project)
	if err != nil {
		return ResolvedSummary{}, false, err
	}
	var bucket []ResolvedSummary
	for _, ref := range refs {
		records, err := r.Store.ReadLogLenient(ref.Path)
		if err != nil {
			continue
		}
		for _, rec := range records {
			sum, ok := rec.(*session.Summary)
			if !ok {
				continue
			}
			entry, ok := idx[sum.LeafUUID]
			if !ok {
				continue
			}
			ts := entry.Timestamp
			if ts.IsZero() {
				ts = sum.Timestamp
			}
			bucket = append(bucket, ResolvedSummary{
				Text:          sum.Text,
				LeafUUID:      sum.LeafUUID,
				SourceSession: ref.SessionID,
				Timestamp:     ts,
			})
		}
	}
	sortBucket(bucket)
	sum, ok := CurrentSummary(bucket)
	return sum, ok, nil
}
