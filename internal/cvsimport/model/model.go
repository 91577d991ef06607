// Package model holds the shared data types that flow through the ingest
// pipeline: scanner, metadata store, changeset generator and exporter all
// speak these types rather than each other's internals.
package model

import "time"

// Filestatus classifies a Change the way the RCS parser derives it; it is
// never stored by RCS itself.
type Filestatus string

const (
	Added    Filestatus = "Added"
	Modified Filestatus = "Modified"
	Deleted  Filestatus = "Deleted"
)

// Change is a single revision of a single file, ready for grouping into a
// Changeset. (filename, revision) is unique within the whole system.
type Change struct {
	Filename    string
	Revision    string
	Timestamp   time.Time
	Author      string
	Log         string
	Filestatus  Filestatus
	State       string
	Mode        string // the RCS header's raw "expand" field: "", "kv", "ko", "k", "v", "c", or "b" for binary
	ChangesetID int64  // 0 until assigned
}

// Changeset is a set of Changes believed to originate from one CVS commit.
type Changeset struct {
	ID        int64
	StartTime time.Time
	EndTime   time.Time
	Author    string
	Log       string
	Members   []*Change
	Mark      string // opaque sink identifier, empty until assigned
}

// EffectiveTimestamp is the timestamp the exporter commits with: CVS favors
// a newly-imported "1.1" over a same-second vendor "1.1.1.1", so the export
// timestamp is biased one second past the changeset's true end.
func (cs *Changeset) EffectiveTimestamp() time.Time {
	return cs.EndTime.Add(time.Second)
}

// Filenames returns the distinct set of paths touched by the changeset's
// members, in member order.
func (cs *Changeset) Filenames() []string {
	seen := make(map[string]bool, len(cs.Members))
	names := make([]string, 0, len(cs.Members))
	for _, c := range cs.Members {
		if !seen[c.Filename] {
			seen[c.Filename] = true
			names = append(names, c.Filename)
		}
	}
	return names
}

// HasFilename reports whether any member already touches path.
func (cs *Changeset) HasFilename(path string) bool {
	for _, c := range cs.Members {
		if c.Filename == path {
			return true
		}
	}
	return false
}

// Integrate attempts to fold c into cs per the identity rule: same author,
// same log, and a filename not already present. On success it appends c and
// widens [StartTime, EndTime].
func (cs *Changeset) Integrate(c *Change) bool {
	if c.Author != cs.Author || c.Log != cs.Log || cs.HasFilename(c.Filename) {
		return false
	}
	cs.Members = append(cs.Members, c)
	if c.Timestamp.Before(cs.StartTime) {
		cs.StartTime = c.Timestamp
	}
	if c.Timestamp.After(cs.EndTime) {
		cs.EndTime = c.Timestamp
	}
	return true
}

// NewChangeset opens a changeset with c as its sole member.
func NewChangeset(c *Change) *Changeset {
	return &Changeset{
		Author:    c.Author,
		Log:       c.Log,
		StartTime: c.Timestamp,
		EndTime:   c.Timestamp,
		Members:   []*Change{c},
	}
}

// StatcacheEntry is the scanner's per-",v"-file modification fingerprint.
type StatcacheEntry struct {
	Path  string
	Mtime time.Time
	Size  int64
}
