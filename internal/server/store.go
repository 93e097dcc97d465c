package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notesync/pkg/core"
)

type space struct {
	notes    map[string]core.Note
	folders  []core.Folder
	versions map[string]core.Version
}

func newSpace() *space {
	return &space{
		notes:    make(map[string]core.Note),
		versions: make(map[string]core.Version),
	}
}

func (sp *space) folderIndex(id string) int {
	for i, f := range sp.folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Store keeps every principal's records in memory. Principals never see
// each other's records.
type Store struct {
	mu     sync.Mutex
	spaces map[string]*space
	now    func() time.Time
	newID  func() string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		spaces: make(map[string]*space),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// space returns the principal's records, creating them on first use.
// Callers hold s.mu.
func (s *Store) space(user string) *space {
	sp, ok := s.spaces[user]
	if !ok {
		sp = newSpace()
		s.spaces[user] = sp
	}
	return sp
}

func (s *Store) ListNotes(user string) []core.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	notes := make([]core.Note, 0, len(sp.notes))
	for _, n := range sp.notes {
		notes = append(notes, n.Clone())
	}
	core.SortNotes(notes)
	return notes
}

// CreateNote inserts the note, or replaces it when the id already exists so
// a retried create never duplicates.
func (s *Store) CreateNote(user string, in core.NoteInput) core.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	if in.ID == "" {
		in.ID = s.newID()
	}
	n := in.Build(s.now())
	if prev, ok := sp.notes[n.ID]; ok && in.CreatedAt == nil {
		n.CreatedAt = prev.CreatedAt
	}
	sp.notes[n.ID] = n
	return n.Clone()
}

func (s *Store) UpdateNote(user, id string, patch core.NotePatch) (core.Note, error) {
	return s.mutateNote(user, "update note", id, func(n *core.Note) error {
		n.Apply(patch, s.now())
		return nil
	})
}

// MoveNote files the note under folderID; nil unfiles it.
func (s *Store) MoveNote(user, id string, folderID *string) (core.Note, error) {
	return s.mutateNote(user, "move note", id, func(n *core.Note) error {
		if folderID != nil && s.space(user).folderIndex(*folderID) < 0 {
			return core.NotFound("move note", *folderID)
		}
		n.FolderID = nil
		if folderID != nil {
			n.FolderID = core.FolderRef(*folderID)
		}
		n.UpdatedAt = s.now()
		return nil
	})
}

func (s *Store) TogglePin(user, id string) (core.Note, error) {
	return s.mutateNote(user, "toggle pin", id, func(n *core.Note) error {
		n.TogglePin(s.now())
		return nil
	})
}

// DeleteNote is idempotent.
func (s *Store) DeleteNote(user, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.space(user).notes, id)
}

func (s *Store) ListFolders(user string) []core.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Folder{}, s.space(user).folders...)
}

func (s *Store) CreateFolder(user string, in core.FolderInput) core.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	if in.ID == "" {
		in.ID = s.newID()
	}
	if i := sp.folderIndex(in.ID); i >= 0 {
		sp.folders[i].Name = in.Name
		return sp.folders[i]
	}
	f := core.Folder{ID: in.ID, Name: in.Name, CreatedAt: s.now()}
	sp.folders = append(sp.folders, f)
	return f
}

func (s *Store) RenameFolder(user, id, name string) (core.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	i := sp.folderIndex(id)
	if i < 0 {
		return core.Folder{}, core.NotFound("rename folder", id)
	}
	sp.folders[i].Name = name
	return sp.folders[i], nil
}

// DeleteFolder removes the folder and unfiles its notes. It is idempotent.
func (s *Store) DeleteFolder(user, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	if i := sp.folderIndex(id); i >= 0 {
		sp.folders = append(sp.folders[:i], sp.folders[i+1:]...)
	}
	for nid, n := range sp.notes {
		if n.InFolder(id) {
			n.FolderID = nil
			sp.notes[nid] = n
		}
	}
}

// Snapshot records the note's current title and content as a version.
func (s *Store) Snapshot(user, noteID string) (core.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	n, ok := sp.notes[noteID]
	if !ok {
		return core.Version{}, core.NotFound("snapshot", noteID)
	}
	v := core.Version{
		ID:        s.newID(),
		NoteID:    noteID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: s.now(),
	}
	sp.versions[v.ID] = v
	return v, nil
}

// ListVersions returns the note's versions, newest first.
func (s *Store) ListVersions(user, noteID string) []core.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Version
	for _, v := range s.space(user).versions {
		if v.NoteID == noteID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) GetVersion(user, id string) (core.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.space(user).versions[id]
	if !ok {
		return core.Version{}, core.NotFound("get version", id)
	}
	return v, nil
}

// RestoreVersion copies the version's title and content back onto its note.
func (s *Store) RestoreVersion(user, id string) (core.Note, error) {
	s.mu.Lock()
	v, ok := s.space(user).versions[id]
	s.mu.Unlock()
	if !ok {
		return core.Note{}, core.NotFound("restore version", id)
	}
	return s.mutateNote(user, "restore version", v.NoteID, func(n *core.Note) error {
		n.Title = v.Title
		n.Content = v.Content
		n.UpdatedAt = s.now()
		return nil
	})
}

func (s *Store) mutateNote(user, op, id string, fn func(*core.Note) error) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(user)
	n, ok := sp.notes[id]
	if !ok {
		return core.Note{}, core.NotFound(op, id)
	}
	if err := fn(&n); err != nil {
		return core.Note{}, fmt.Errorf("%s: %w", op, err)
	}
	sp.notes[id] = n
	return n.Clone(), nil
}
