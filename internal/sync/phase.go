package sync

import (
	"context"
	"sync"
	"time"

	"github.com/cfait/cfait/internal/cache"
	"github.com/cfait/cfait/internal/caldav"
	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/journal"
	"github.com/cfait/cfait/internal/task"
	"github.com/cfait/cfait/internal/vtodo"
)

// outerConcurrency and innerConcurrency implement spec.md §5's two-level
// semaphore: at most 4 calendars fetched in parallel, and within one
// calendar at most 4 multiget requests (of up to 8 resources each) in
// flight.
const (
	outerConcurrency = 4
	innerConcurrency = 4
	maxMergeRetries  = 1 // one extra 412 retry after the first merge attempt
)

// Synchronizer drives Phase A (journal flush) and Phase B (CTag-gated
// delta pull) against one CalDAV server, grounded on spec.md §4.7. It has
// no knowledge of the store's in-memory index — mutations are reported
// back through Result so the store facade (the one place spec.md allows
// to mutate the index) can apply them.
type Synchronizer struct {
	client  *caldav.Client
	cache   *cache.Cache
	journal *journal.Journal
}

// New builds a Synchronizer over an already-open cache and journal and a
// configured CalDAV client.
func New(client *caldav.Client, c *cache.Cache, j *journal.Journal) *Synchronizer {
	return &Synchronizer{client: client, cache: c, journal: j}
}

// Result summarizes what a Sync call changed, for the store facade to
// fold into its in-memory index.
type Result struct {
	Upserted  []*task.Task
	Removed   []RemovedTask
	Conflicts []*task.Task // conflict copies created during merge, already queued for push
	Errors    []error      // non-fatal per-resource errors (codec failures, single-calendar transport errors)
}

// RemovedTask identifies one task removed from a calendar during a pull.
type RemovedTask struct {
	CalendarHref string
	UID          string
}

func (r *Result) addError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// Sync runs Phase A then Phase B against every enabled calendar in metas.
// Cancellation is honored between HTTP operations and between calendar
// batches (spec.md §4.7): ctx is checked at the top of each loop
// iteration, and a cancellation mid-batch leaves the cache in the state of
// the last fully committed batch.
func (s *Synchronizer) Sync(ctx context.Context, metas map[string]cache.CalendarMeta) (*Result, error) {
	result := &Result{}

	if err := s.flushJournal(ctx, result); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, cferr.New(cferr.Cancelled, "sync cancelled before pull")
	}
	if err := s.pull(ctx, metas, result); err != nil {
		return result, err
	}
	return result, nil
}

// --- Phase A: journal flush ---

func (s *Synchronizer) flushJournal(ctx context.Context, result *Result) error {
	for _, rec := range s.journal.Pending() {
		if err := ctx.Err(); err != nil {
			return cferr.New(cferr.Cancelled, "sync cancelled during journal flush")
		}
		switch rec.Kind {
		case journal.Put:
			s.flushPut(ctx, rec, result)
		case journal.Delete:
			s.flushDelete(ctx, rec, result)
		case journal.Move:
			s.flushMove(ctx, rec, result)
		}
	}
	return nil
}

func (s *Synchronizer) flushPut(ctx context.Context, rec journal.Record, result *Result) {
	local, err := vtodo.Decode(rec.Body, rec.ETag, "", rec.CalendarHref)
	if err != nil {
		result.addError(err)
		s.journal.Drop(rec.CalendarHref, rec.UID)
		return
	}
	local.UID = rec.UID

	if rec.ETag == "" {
		s.flushCreate(ctx, rec, local, result)
		return
	}
	s.flushUpdate(ctx, rec, local, result, 0)
}

func (s *Synchronizer) flushCreate(ctx context.Context, rec journal.Record, local *task.Task, result *Result) {
	href := local.Href
	if href == "" {
		href = rec.CalendarHref + local.UID + ".ics"
	}
	etag, err := s.client.Put(ctx, href, rec.Body, "", "*")
	switch {
	case err == nil:
		local.Href = href
		local.ETag = etag
		local.Dirty = false
		if cerr := s.cache.PutTask(rec.CalendarHref, local); cerr != nil {
			result.addError(cerr)
		}
		s.journal.Drop(rec.CalendarHref, rec.UID)
		result.Upserted = append(result.Upserted, local)
	case cferr.Is(err, cferr.PreconditionFailed):
		// UID collision: someone already created this href. Re-GET and
		// retry as an update against the now-known ETag.
		body, remoteETag, gerr := s.client.Get(ctx, href)
		if gerr != nil {
			result.addError(gerr)
			return
		}
		_ = body
		rec.ETag = remoteETag
		s.flushUpdate(ctx, rec, local, result, 0)
	default:
		result.addError(err)
	}
}

func (s *Synchronizer) flushUpdate(ctx context.Context, rec journal.Record, local *task.Task, result *Result, attempt int) {
	href := local.Href
	if href == "" {
		href = rec.CalendarHref + rec.UID + ".ics"
	}
	etag, err := s.client.Put(ctx, href, rec.Body, rec.ETag, "")
	switch {
	case err == nil:
		local.Href = href
		local.ETag = etag
		local.Dirty = false
		if cerr := s.cache.PutTask(rec.CalendarHref, local); cerr != nil {
			result.addError(cerr)
		}
		s.journal.Drop(rec.CalendarHref, rec.UID)
		result.Upserted = append(result.Upserted, local)
	case cferr.Is(err, cferr.PreconditionFailed):
		s.resolveConflict(ctx, rec, local, href, result, attempt)
	default:
		result.addError(err)
	}
}

// resolveConflict implements the 3-way merge on 412 (spec.md §4.7): base
// is the cache's last-known body, local is the in-flight edit, remote is
// the current server body re-fetched here. On a repeated 412 past
// maxMergeRetries, the whole local edit is preserved as a fresh
// conflict-copy task instead of being retried indefinitely.
func (s *Synchronizer) resolveConflict(ctx context.Context, rec journal.Record, local *task.Task, href string, result *Result, attempt int) {
	remoteBody, remoteETag, err := s.client.Get(ctx, href)
	if err != nil {
		result.addError(err)
		return
	}
	remote, err := vtodo.Decode(remoteBody, remoteETag, href, rec.CalendarHref)
	if err != nil {
		result.addError(err)
		return
	}

	base, err := s.cache.GetTask(rec.CalendarHref, rec.UID)
	if err != nil {
		// No cached base (e.g. first sync since the app started): treat
		// remote as the ancestor, which degrades every field rule to
		// "only local differs" and never fabricates a conflict copy.
		base = remote.Clone()
	}

	outcome := ThreeWayMerge(base, local, remote)
	outcome.Merged.Href = href
	outcome.Merged.CalendarHref = rec.CalendarHref
	outcome.Merged.UID = rec.UID

	if outcome.Copy != nil {
		outcome.Copy.CalendarHref = rec.CalendarHref
		result.Conflicts = append(result.Conflicts, outcome.Copy)
		if _, aerr := s.journal.Append(journal.Record{
			Kind:         journal.Put,
			CalendarHref: rec.CalendarHref,
			UID:          outcome.Copy.UID,
			Body:         vtodo.Encode(outcome.Copy),
			Timestamp:    rec.Timestamp,
		}); aerr != nil {
			result.addError(aerr)
		}
	}

	mergedBody := vtodo.Encode(outcome.Merged)
	etag, perr := s.client.Put(ctx, href, mergedBody, remoteETag, "")
	switch {
	case perr == nil:
		outcome.Merged.ETag = etag
		outcome.Merged.Dirty = false
		if cerr := s.cache.PutTask(rec.CalendarHref, outcome.Merged); cerr != nil {
			result.addError(cerr)
		}
		s.journal.Drop(rec.CalendarHref, rec.UID)
		result.Upserted = append(result.Upserted, outcome.Merged)
	case cferr.Is(perr, cferr.PreconditionFailed) && attempt < maxMergeRetries:
		nextRec := rec
		nextRec.Body = mergedBody
		s.flushUpdate(ctx, nextRec, outcome.Merged, result, attempt+1)
	case cferr.Is(perr, cferr.PreconditionFailed):
		// Escalate: give up writing to this UID for now and preserve the
		// whole local edit as its own conflict copy instead of retrying
		// forever against a server that keeps moving.
		giveUp := local.Clone()
		giveUp.UID = task.NewLocalUID()
		giveUp.Href = ""
		giveUp.ETag = ""
		giveUp.CalendarHref = rec.CalendarHref
		giveUp.Summary = conflictSummaryPrefix + local.Summary
		result.Conflicts = append(result.Conflicts, giveUp)
		if _, aerr := s.journal.Append(journal.Record{
			Kind:         journal.Put,
			CalendarHref: rec.CalendarHref,
			UID:          giveUp.UID,
			Body:         vtodo.Encode(giveUp),
			Timestamp:    rec.Timestamp,
		}); aerr != nil {
			result.addError(aerr)
		}
		s.journal.Drop(rec.CalendarHref, rec.UID)
		result.addError(cferr.New(cferr.PreconditionFailed, "conflict escalated after repeated 412 for "+rec.UID))
	default:
		result.addError(perr)
	}
}

func (s *Synchronizer) flushDelete(ctx context.Context, rec journal.Record, result *Result) {
	href := rec.DestHref
	if href == "" {
		href = rec.CalendarHref + rec.UID + ".ics"
	}
	err := s.client.Delete(ctx, href, rec.ETag)
	switch {
	case err == nil || cferr.Is(err, cferr.NotFound):
		if cerr := s.cache.DeleteTask(rec.CalendarHref, rec.UID); cerr != nil {
			result.addError(cerr)
		}
		s.journal.Drop(rec.CalendarHref, rec.UID)
		result.Removed = append(result.Removed, RemovedTask{CalendarHref: rec.CalendarHref, UID: rec.UID})
	case cferr.Is(err, cferr.PreconditionFailed):
		remoteBody, remoteETag, gerr := s.client.Get(ctx, href)
		if gerr != nil {
			result.addError(gerr)
			return
		}
		remote, derr := vtodo.Decode(remoteBody, remoteETag, href, rec.CalendarHref)
		if derr != nil {
			result.addError(derr)
			return
		}
		base, berr := s.cache.GetTask(rec.CalendarHref, rec.UID)
		if berr == nil && remoteIsMaterallyNewer(base, remote) {
			// Someone else changed the task after we decided to delete
			// it: keep their version rather than destroying new data.
			if cerr := s.cache.PutTask(rec.CalendarHref, remote); cerr != nil {
				result.addError(cerr)
			}
			s.journal.Drop(rec.CalendarHref, rec.UID)
			result.Upserted = append(result.Upserted, remote)
			return
		}
		// Base is still the version we decided to delete: retry with the
		// fresh ETag.
		if derr := s.client.Delete(ctx, href, remoteETag); derr == nil || cferr.Is(derr, cferr.NotFound) {
			if cerr := s.cache.DeleteTask(rec.CalendarHref, rec.UID); cerr != nil {
				result.addError(cerr)
			}
			s.journal.Drop(rec.CalendarHref, rec.UID)
			result.Removed = append(result.Removed, RemovedTask{CalendarHref: rec.CalendarHref, UID: rec.UID})
		} else {
			result.addError(derr)
		}
	default:
		result.addError(err)
	}
}

func remoteIsMaterallyNewer(base, remote *task.Task) bool {
	if base == nil || base.LastModified == nil || remote.LastModified == nil {
		return remote != nil
	}
	return remote.LastModified.Time.After(base.LastModified.Time)
}

// flushMove implements the Put-then-Delete ordering spec.md §4.7 requires:
// if the destination Put fails, nothing is deleted; if it succeeds but the
// source Delete fails, the journal keeps a Delete-only record so a retry
// never re-creates the destination copy.
func (s *Synchronizer) flushMove(ctx context.Context, rec journal.Record, result *Result) {
	destHref := rec.DestHref + rec.UID + ".ics"
	etag, err := s.client.Put(ctx, destHref, rec.Body, "", "*")
	if err != nil {
		result.addError(err)
		return
	}

	moved, derr := vtodo.Decode(rec.Body, etag, destHref, rec.DestHref)
	if derr != nil {
		result.addError(derr)
	} else {
		moved.UID = rec.UID
		if cerr := s.cache.PutTask(rec.DestHref, moved); cerr != nil {
			result.addError(cerr)
		}
		result.Upserted = append(result.Upserted, moved)
	}

	srcHref := rec.CalendarHref + rec.UID + ".ics"
	if err := s.client.Delete(ctx, srcHref, rec.ETag); err != nil && !cferr.Is(err, cferr.NotFound) {
		// Destination copy exists; collapse the pending op to a plain
		// delete of the source so a retry doesn't re-PUT the destination.
		if _, aerr := s.journal.Append(journal.Record{
			Kind:         journal.Delete,
			CalendarHref: rec.CalendarHref,
			UID:          rec.UID,
			ETag:         rec.ETag,
			Timestamp:    rec.Timestamp,
		}); aerr != nil {
			result.addError(aerr)
		}
		result.addError(err)
		return
	}

	if cerr := s.cache.DeleteTask(rec.CalendarHref, rec.UID); cerr != nil {
		result.addError(cerr)
	}
	s.journal.Drop(rec.CalendarHref, rec.UID)
	result.Removed = append(result.Removed, RemovedTask{CalendarHref: rec.CalendarHref, UID: rec.UID})
}

// --- Phase B: pull ---

func (s *Synchronizer) pull(ctx context.Context, metas map[string]cache.CalendarMeta, result *Result) error {
	touchedByJournal := make(map[string]bool)
	for _, rec := range s.journal.Pending() {
		touchedByJournal[rec.CalendarHref] = true
	}

	type job struct {
		href string
		meta cache.CalendarMeta
	}
	var jobs []job
	for href, m := range metas {
		if m.Disabled || task.IsLocalHref(href) {
			continue
		}
		jobs = append(jobs, job{href: href, meta: m})
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, outerConcurrency)
		errs []error
	)

	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			calResult, newCTag, err := s.pullCalendar(ctx, j.href, j.meta, touchedByJournal[j.href])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			result.Upserted = append(result.Upserted, calResult.Upserted...)
			result.Removed = append(result.Removed, calResult.Removed...)
			if newCTag != "" {
				m := metas[j.href]
				m.CTag = newCTag
				m.LastSyncAt = nowUnix()
				metas[j.href] = m
			}
		}(j)
	}
	wg.Wait()

	for _, e := range errs {
		result.addError(e)
	}
	return nil
}

// pullCalendar performs one calendar's CTag check and, if it changed,
// full delta fetch. It returns the new CTag ("" if unchanged and the
// caller should keep the existing one).
func (s *Synchronizer) pullCalendar(ctx context.Context, href string, meta cache.CalendarMeta, touchedLocally bool) (Result, string, error) {
	var out Result

	ctag, err := s.client.FetchCTag(ctx, href)
	if err != nil {
		return out, "", err
	}
	if ctag == meta.CTag && !touchedLocally {
		return out, "", nil
	}

	remoteResources, err := s.client.ListResources(ctx, href)
	if err != nil {
		return out, "", err
	}
	remoteByHref := make(map[string]caldav.Resource, len(remoteResources))
	for _, r := range remoteResources {
		remoteByHref[r.Href] = r
	}

	cached, err := s.cache.ListTasks(href)
	if err != nil {
		return out, "", err
	}
	cachedByUID := make(map[string]*task.Task, len(cached))
	for _, t := range cached {
		cachedByUID[t.UID] = t
	}
	cachedHrefSet := make(map[string]bool, len(cached))
	for _, t := range cached {
		if t.Href != "" {
			cachedHrefSet[t.Href] = true
		}
	}

	var toFetch []string
	for h, r := range remoteByHref {
		matched := false
		for _, t := range cached {
			if t.Href == h {
				matched = true
				if t.ETag != r.ETag {
					toFetch = append(toFetch, h)
				}
				break
			}
		}
		if !matched {
			toFetch = append(toFetch, h)
		}
	}

	fetched, err := s.fetchBounded(ctx, href, toFetch)
	if err != nil {
		return out, "", err
	}
	pendingUIDs := make(map[string]bool)
	for _, rec := range s.journal.Pending() {
		if rec.CalendarHref == href {
			pendingUIDs[rec.UID] = true
		}
	}
	for _, fr := range fetched {
		t, derr := vtodo.Decode(fr.Body, fr.ETag, fr.Href, href)
		if derr != nil {
			out.addError(derr)
			continue
		}
		if cached := cachedByUID[t.UID]; pendingUIDs[t.UID] || (cached != nil && cached.Dirty) {
			// A pending local edit exists for this UID; the journal flush
			// (already run this Sync) owns reconciling it. Skip clobbering.
			continue
		}
		if cerr := s.cache.PutTask(href, t); cerr != nil {
			out.addError(cerr)
			continue
		}
		out.Upserted = append(out.Upserted, t)
	}

	for _, t := range cached {
		if t.Href == "" {
			continue
		}
		if _, stillThere := remoteByHref[t.Href]; !stillThere {
			if derr := s.cache.DeleteTask(href, t.UID); derr != nil {
				out.addError(derr)
				continue
			}
			out.Removed = append(out.Removed, RemovedTask{CalendarHref: href, UID: t.UID})
		}
	}

	return out, ctag, nil
}

// fetchBounded runs MultiGet in batches of up to 8 hrefs, with at most
// innerConcurrency batches in flight (spec.md §5's inner semaphore).
func (s *Synchronizer) fetchBounded(ctx context.Context, calendarHref string, hrefs []string) ([]caldav.FetchedResource, error) {
	if len(hrefs) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, innerConcurrency)
		out     []caldav.FetchedResource
		firstErr error
	)

	batches := chunk(hrefs, 8)
	for _, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(batch []string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.client.MultiGet(ctx, calendarHref, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			out = append(out, res...)
		}(batch)
	}
	wg.Wait()
	if firstErr == nil && ctx.Err() != nil {
		firstErr = cferr.New(cferr.Cancelled, "sync cancelled")
	}
	return out, firstErr
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

func nowUnix() int64 { return time.Now().Unix() }
