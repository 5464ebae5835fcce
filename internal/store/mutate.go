package store

import (
	"strings"
	"time"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/journal"
	"github.com/cfait/cfait/internal/smartinput"
	"github.com/cfait/cfait/internal/task"
	"github.com/cfait/cfait/internal/vtodo"
)

// mergedAliases combines the persisted config aliases with any inline
// `#alias=tag1,tag2` definitions found in input, and folds newly defined
// aliases back into the config so they survive future calls this session
// (they are not persisted to disk until the caller calls Config().Save).
func (s *Store) mergedAliases(input string) (string, map[string][]string) {
	cleaned, inline := smartinput.ExtractInlineAliases(input)
	merged := make(map[string][]string, len(s.cfg.TagAliases)+len(inline))
	for k, v := range s.cfg.TagAliases {
		merged[k] = v
	}
	for k, v := range inline {
		merged[k] = v
		s.cfg.TagAliases[k] = v
	}
	return cleaned, merged
}

// journalPut appends a Put record and persists t to cache — the durable
// half of the optimistic-mutation contract, done before the in-memory
// index is exposed to any reader (spec.md §4.5, §5).
func (s *Store) journalPut(t *task.Task) error {
	if _, err := s.journal.Append(journal.Record{
		Kind:         journal.Put,
		CalendarHref: t.CalendarHref,
		UID:          t.UID,
		Body:         vtodo.Encode(t),
		ETag:         t.ETag,
		Timestamp:    time.Now().Unix(),
	}); err != nil {
		return err
	}
	return s.cache.PutTask(t.CalendarHref, t)
}

func (s *Store) journalDelete(t *task.Task) error {
	if _, err := s.journal.Append(journal.Record{
		Kind:         journal.Delete,
		CalendarHref: t.CalendarHref,
		UID:          t.UID,
		ETag:         t.ETag,
		Timestamp:    time.Now().Unix(),
	}); err != nil {
		return err
	}
	return s.cache.DeleteTask(t.CalendarHref, t.UID)
}

// AddTaskSmart creates a new task on calendarHref from a single free-text
// line, per spec.md §4.3. It returns the newly created (and now indexed)
// task.
func (s *Store) AddTaskSmart(calendarHref, input string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calendars[calendarHref]; !ok {
		return nil, cferr.Newf(cferr.InvalidInput, "unknown calendar %q", calendarHref)
	}

	cleaned, aliases := s.mergedAliases(input)

	t := task.New()
	t.CalendarHref = calendarHref
	smartinput.Apply(t, cleaned, aliases, time.Now())
	if strings.TrimSpace(t.Summary) == "" {
		return nil, cferr.New(cferr.InvalidInput, "task summary cannot be empty")
	}
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.index[t.UID] = t
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}

// UpdateTaskSmart re-derives every token-controlled field of an existing
// task from a new free-text line, leaving Description untouched (spec.md
// §4.3: smart input never touches the long-form description).
func (s *Store) UpdateTaskSmart(uid, input string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}

	cleaned, aliases := s.mergedAliases(input)
	smartinput.Apply(t, cleaned, aliases, time.Now())
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}

// SmartInputString renders t back into the free-text form UpdateTaskSmart
// expects, for pre-filling an edit prompt (spec.md §4.3's format/parse
// round trip).
func (s *Store) SmartInputString(uid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.index[uid]
	if !ok {
		return "", cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	return smartinput.Format(t), nil
}

// UpdateTaskDescription sets the long-form description without touching
// any token-controlled field.
func (s *Store) UpdateTaskDescription(uid, description string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	t.Description = description
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.SignalSync()
	return t, nil
}

// ToggleTask flips between Completed and NeedsAction, per
// original_source/src/store.rs::toggle_task. Completing a recurring task
// respawns its next occurrence (spec.md's recurrence-respawn behavior).
func (s *Store) ToggleTask(uid string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	if t.Status == task.Completed {
		t.Status = task.NeedsAction
	} else {
		t.Status = task.Completed
		t.Completed = &task.DateValue{Time: time.Now()}
	}
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	if err := s.respawnIfRecurringLocked(t); err != nil {
		return nil, err
	}
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}

// SetStatus sets status, toggling back to NeedsAction if the task is
// already in that status (original_source/src/store.rs::set_status).
// Setting a recurring task to Completed respawns its next occurrence.
func (s *Store) SetStatus(uid string, status task.Status) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	if t.Status == status {
		t.Status = task.NeedsAction
	} else {
		t.Status = status
	}
	if t.Status == task.Completed && t.Completed == nil {
		t.Completed = &task.DateValue{Time: time.Now()}
	}
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	if err := s.respawnIfRecurringLocked(t); err != nil {
		return nil, err
	}
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}

// respawnIfRecurringLocked mints and journals the next occurrence of t when
// t has just been marked Completed and carries an RRULE, per
// original_source/src/model.rs::respawn. The completed instance itself is
// left untouched; the new occurrence is indexed as a separate task. Caller
// must hold s.mu.
func (s *Store) respawnIfRecurringLocked(t *task.Task) error {
	if t.Status != task.Completed || !t.IsRecurring() {
		return nil
	}
	next, ok := task.Respawn(t)
	if !ok {
		return nil
	}
	if err := s.journalPut(next); err != nil {
		return err
	}
	s.index[next.UID] = next
	return nil
}

// ChangePriority steps priority up or down through the fixed rungs
// {unset, 9, 5, 1} spec.md carries from
// original_source/src/store.rs::change_priority: delta > 0 raises urgency
// (the PRIORITY number falls toward 1), delta < 0 lowers it.
func (s *Store) ChangePriority(uid string, delta int) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}

	if delta > 0 {
		switch t.Priority {
		case 0:
			t.Priority = 9
		case 9:
			t.Priority = 5
		case 5:
			t.Priority = 1
		default:
			t.Priority = 1
		}
	} else if delta < 0 {
		switch t.Priority {
		case 1:
			t.Priority = 5
		case 5:
			t.Priority = 9
		case 9:
			t.Priority = 0
		default:
			t.Priority = 0
		}
	}
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.SignalSync()
	return t, nil
}

// DeleteTask removes a task from the index and queues its deletion on the
// server.
func (s *Store) DeleteTask(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}

	if err := s.journalDelete(t); err != nil {
		return err
	}
	delete(s.index, uid)
	s.rebuildDerivedLocked()
	s.SignalSync()
	return nil
}

// MoveTask relocates a task to a different calendar: delete from the
// source, re-create on the destination with a fresh href (per
// original_source/src/store.rs::move_task, which is itself delete+re-add).
// Moving a task to its current calendar is a no-op.
func (s *Store) MoveTask(uid, destCalendarHref string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	if t.CalendarHref == destCalendarHref {
		return t, nil
	}
	if _, ok := s.calendars[destCalendarHref]; !ok {
		return nil, cferr.Newf(cferr.InvalidInput, "unknown calendar %q", destCalendarHref)
	}

	srcHref := t.CalendarHref
	if _, err := s.journal.Append(journal.Record{
		Kind:         journal.Move,
		CalendarHref: srcHref,
		UID:          t.UID,
		Body:         vtodo.Encode(t),
		ETag:         t.ETag,
		DestHref:     destCalendarHref,
		Timestamp:    time.Now().Unix(),
	}); err != nil {
		return nil, err
	}

	t.CalendarHref = destCalendarHref
	t.Href = ""
	t.ETag = ""
	t.Dirty = true
	if err := s.cache.PutTask(destCalendarHref, t); err != nil {
		return nil, err
	}
	if err := s.cache.DeleteTask(srcHref, t.UID); err != nil {
		return nil, err
	}
	s.SignalSync()
	return t, nil
}

// Block records that uid depends on blockerUID (RELATED-TO;RELTYPE=DEPENDS-ON,
// RFC 9253). Adding a UID already present is a no-op, per
// original_source/src/store.rs::add_dependency.
func (s *Store) Block(uid, blockerUID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	for _, existing := range t.Blocks {
		if existing == blockerUID {
			return t, nil
		}
	}
	t.Blocks = append(t.Blocks, blockerUID)
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}

// Unblock removes blockerUID from uid's DEPENDS-ON set.
func (s *Store) Unblock(uid, blockerUID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	kept := t.Blocks[:0]
	for _, existing := range t.Blocks {
		if existing != blockerUID {
			kept = append(kept, existing)
		}
	}
	t.Blocks = kept
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}

// SetChildOf sets uid's PARENT relationship; an empty parentUID clears it.
func (s *Store) SetChildOf(uid, parentUID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[uid]
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	t.ParentUID = parentUID
	t.Dirty = true

	if err := s.journalPut(t); err != nil {
		return nil, err
	}
	s.rebuildDerivedLocked()
	s.SignalSync()
	return t, nil
}
