// Package journal implements the durable write-ahead log of pending local
// mutations described in spec.md §4.5: an append-only, length-prefixed
// record file that the synchronizer replays and drains on each sync, so a
// mutation survives a crash between being applied to the in-memory store
// and being pushed to the server.
//
// The original implementation this engine is descended from
// (original_source/src/journal.rs) kept its pending-op queue as a single
// JSON array rewritten in full on every push — workable for a queue that
// is popped strictly front-to-back, but not durable against a crash
// mid-write and not able to collapse a stale op the way spec.md's
// length-prefixed, per-(calendar,uid)-collapsing design requires. This
// package is a from-scratch redesign to that stronger contract, not a
// translation.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cfait/cfait/internal/cferr"
)

// Kind identifies what a Record does.
type Kind string

const (
	Put    Kind = "put"
	Delete Kind = "delete"
	Move   Kind = "move"
)

// Record is one pending mutation, as spec.md §4.5 defines it: {seq, kind,
// calendar_href, uid, body?, etag?, ts}. DestHref extends the record for
// Move, which needs a source and a destination calendar.
type Record struct {
	Seq          uint64 `json:"seq"`
	Kind         Kind   `json:"kind"`
	CalendarHref string `json:"calendar_href"`
	UID          string `json:"uid"`
	Body         string `json:"body,omitempty"`
	ETag         string `json:"etag,omitempty"`
	DestHref     string `json:"dest_href,omitempty"`
	Timestamp    int64  `json:"ts"`
}

func (r Record) key() string { return r.CalendarHref + "\x00" + r.UID }

// compactionInterval is how many raw appends accumulate before a
// compaction pass rewrites the file to drop superseded records.
const compactionInterval = 64

// Journal is a handle on one journal.log file.
type Journal struct {
	mu   sync.Mutex
	path string

	f *os.File

	nextSeq uint64
	order   []string          // key insertion order, for stable replay
	latest  map[string]Record // key -> most recent surviving record

	appendsSincePersisted int
}

// Open reads path (creating it if absent) and replays it into memory. A
// truncated trailing record — the shape a crash mid-append leaves behind —
// is discarded rather than failing the open.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "create journal directory")
	}

	j := &Journal{
		path:   path,
		order:  nil,
		latest: make(map[string]Record),
	}

	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		j.apply(r)
		if r.Seq >= j.nextSeq {
			j.nextSeq = r.Seq + 1
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "open journal "+path)
	}
	j.f = f
	if err := j.compactLocked(); err != nil {
		return nil, err
	}
	return j, nil
}

// Close releases the open file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// apply folds r into the in-memory collapsed view: a later record for the
// same (calendar, uid) supersedes an earlier one, but the key keeps its
// original position in replay order.
func (j *Journal) apply(r Record) {
	key := r.key()
	if _, exists := j.latest[key]; !exists {
		j.order = append(j.order, key)
	}
	j.latest[key] = r
}

// Append writes a new record, assigning it the next sequence number, and
// triggers a compaction pass every compactionInterval appends.
func (j *Journal) Append(r Record) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	r.Seq = j.nextSeq
	j.nextSeq++

	data, err := encodeRecord(r)
	if err != nil {
		return Record{}, cferr.Wrap(cferr.CacheIO, err, "encode journal record")
	}
	if _, err := j.f.Write(data); err != nil {
		return Record{}, cferr.Wrap(cferr.CacheIO, err, "append to journal")
	}
	if err := j.f.Sync(); err != nil {
		return Record{}, cferr.Wrap(cferr.CacheIO, err, "fsync journal")
	}

	j.apply(r)
	j.appendsSincePersisted++
	if j.appendsSincePersisted >= compactionInterval {
		if err := j.compactLocked(); err != nil {
			return r, err
		}
	}
	return r, nil
}

// Drop removes the pending record for (calendarHref, uid), called once
// the synchronizer has confirmed it against the server.
func (j *Journal) Drop(calendarHref, uid string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := calendarHref + "\x00" + uid
	if _, ok := j.latest[key]; !ok {
		return
	}
	delete(j.latest, key)
	for i, k := range j.order {
		if k == key {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}

// Pending returns the currently surviving records in replay order (the
// order each (calendar, uid) key first appeared), the order Phase A
// processes them in.
func (j *Journal) Pending() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, 0, len(j.order))
	for _, k := range j.order {
		out = append(out, j.latest[k])
	}
	return out
}

// Compact rewrites the file to contain only the currently surviving
// records, called on startup and periodically during Append.
func (j *Journal) Compact() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.compactLocked()
}

func (j *Journal) compactLocked() error {
	var buf []byte
	for _, k := range j.order {
		data, err := encodeRecord(j.latest[k])
		if err != nil {
			return cferr.Wrap(cferr.CacheIO, err, "encode journal record during compaction")
		}
		buf = append(buf, data...)
	}

	if err := j.f.Close(); err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "close journal before compaction")
	}
	if err := atomicWriteJournal(j.path, buf); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "reopen journal after compaction")
	}
	j.f = f
	j.appendsSincePersisted = 0
	return nil
}

func encodeRecord(r Record) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	return append(header, payload...), nil
}

// readAll decodes every complete length-prefixed record in path. A short
// read on the final record (length header present but payload truncated,
// or a partial length header) means a crash landed mid-append; that
// trailing fragment is silently discarded rather than treated as
// corruption, since everything before it already fsynced successfully.
func readAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "open journal "+path)
	}
	defer f.Close()

	var records []Record
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			break
		}
		n := binary.BigEndian.Uint32(header)
		payload := make([]byte, n)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		var r Record
		if err := json.Unmarshal(payload, &r); err != nil {
			break
		}
		records = append(records, r)
	}
	return records, nil
}

func atomicWriteJournal(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".journal-tmp-*")
	if err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "create temp journal file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "write temp journal file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "fsync temp journal file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "close temp journal file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "rename journal into place")
	}
	return nil
}
