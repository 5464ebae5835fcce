package cli

import (
	"strings"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/store"
	"github.com/cfait/cfait/internal/task"
)

// resolveUID accepts either a full UID or an unambiguous prefix of one, so a
// user can copy the short form list prints without retyping the whole UUID.
func resolveUID(s *store.Store, arg string) (string, error) {
	if _, ok := s.ByUID(arg); ok {
		return arg, nil
	}

	seen := map[string]bool{}
	var matches []string
	for _, view := range []string{"", "is:done"} {
		for _, t := range s.GetViewTasks(store.ViewOptions{QueryString: view}) {
			if seen[t.UID] {
				continue
			}
			seen[t.UID] = true
			if strings.HasPrefix(t.UID, arg) {
				matches = append(matches, t.UID)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", cferr.Newf(cferr.NotFound, "no task matches uid %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", cferr.Newf(cferr.InvalidInput, "uid prefix %q is ambiguous, matches %d tasks", arg, len(matches))
	}
}

func mustTask(s *store.Store, uid string) (*task.Task, error) {
	t, ok := s.ByUID(uid)
	if !ok {
		return nil, cferr.Newf(cferr.NotFound, "no task with uid %q", uid)
	}
	return t, nil
}
