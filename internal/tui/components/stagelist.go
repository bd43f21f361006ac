package components

import "github.com/alexisbeaulieu97/dialprov/internal/model"

// StageEntry is one row of the stage list. A zero Result with Running false
// is a stage that has not started yet.
type StageEntry struct {
	Name    string
	Running bool
	Done    bool
	Result  model.StageResult
}

// StageList keeps stage rows in pipeline order.
type StageList struct {
	entries []StageEntry
}

// NewStageList builds the list from declared stage names.
func NewStageList(names []string) StageList {
	entries := make([]StageEntry, len(names))
	for i, n := range names {
		entries[i] = StageEntry{Name: n}
	}
	return StageList{entries: entries}
}

// Start marks name as running, appending it when unknown.
func (s StageList) Start(name string) StageList {
	i := s.find(name)
	s.entries = s.clone()
	s.entries[i].Running = true
	return s
}

// Finish records the result for its stage. It reports whether the stage was
// newly completed.
func (s StageList) Finish(result model.StageResult) (StageList, bool) {
	i := s.find(result.Stage)
	s.entries = s.clone()
	first := !s.entries[i].Done
	s.entries[i] = StageEntry{Name: result.Stage, Done: true, Result: result}
	return s, first
}

// Entries returns a copy of the rows.
func (s StageList) Entries() []StageEntry {
	return s.clone()
}

// Len returns the number of rows.
func (s StageList) Len() int {
	return len(s.entries)
}

func (s *StageList) find(name string) int {
	for i, e := range s.entries {
		if e.Name == name {
			return i
		}
	}
	s.entries = append(s.clone(), StageEntry{Name: name})
	return len(s.entries) - 1
}

func (s StageList) clone() []StageEntry {
	return append([]StageEntry(nil), s.entries...)
}
