package core

import "sync"

// Store is the in-memory authoritative collection of notes, folders and
// settings for the running client. Notes handed out are always in display
// order; writes made through the unsorted fast path mark the store dirty
// and the next read resorts.
type Store struct {
	mu       sync.RWMutex
	notes    []Note
	folders  []Folder
	settings Settings
	dirty    bool
}

// NewStore creates an empty store holding default settings.
func NewStore() *Store {
	return &Store{settings: DefaultSettings()}
}

// Notes returns a sorted copy of every note.
func (s *Store) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resortLocked()
	return cloneNotes(s.notes)
}

// Note looks a note up by id.
func (s *Store) Note(id string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Note{}, false
	}
	return s.notes[i].Clone(), true
}

// NotesInFolder returns the notes filed under folderID, in display order.
func (s *Store) NotesInFolder(folderID string) []Note {
	var out []Note
	for _, n := range s.Notes() {
		if n.InFolder(folderID) {
			out = append(out, n)
		}
	}
	return out
}

// ReplaceNotes swaps the whole note collection.
func (s *Store) ReplaceNotes(notes []Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = cloneNotes(notes)
	SortNotes(s.notes)
	s.dirty = false
}

// PutNote inserts or replaces a note by id and resorts.
func (s *Store) PutNote(n Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(n)
	SortNotes(s.notes)
	s.dirty = false
}

// PutNoteUnsorted replaces a note without resorting. Used for high
// frequency edits; the next read resorts.
func (s *Store) PutNoteUnsorted(n Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(n)
	s.dirty = true
}

// RemoveNote drops a note and reports whether it existed.
func (s *Store) RemoveNote(id string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Note{}, false
	}
	removed := s.notes[i]
	s.notes = append(s.notes[:i], s.notes[i+1:]...)
	return removed, true
}

// ClearFolder unfiles every note referencing folderID and returns the
// previous values of the notes it touched.
func (s *Store) ClearFolder(folderID string) []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev []Note
	for i := range s.notes {
		if s.notes[i].InFolder(folderID) {
			prev = append(prev, s.notes[i].Clone())
			s.notes[i].FolderID = nil
		}
	}
	return prev
}

// Folders returns a copy of the folders in creation order.
func (s *Store) Folders() []Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Folder(nil), s.folders...)
}

// Folder looks a folder up by id.
func (s *Store) Folder(id string) (Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.folders {
		if f.ID == id {
			return f, true
		}
	}
	return Folder{}, false
}

// ReplaceFolders swaps the folder collection.
func (s *Store) ReplaceFolders(folders []Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = append([]Folder(nil), folders...)
}

// PutFolder inserts or replaces a folder, keeping its position on replace.
func (s *Store) PutFolder(f Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.folders {
		if s.folders[i].ID == f.ID {
			s.folders[i] = f
			return
		}
	}
	s.folders = append(s.folders, f)
}

// RemoveFolder drops a folder and returns it with its former position.
func (s *Store) RemoveFolder(id string) (Folder, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.folders {
		if f.ID == id {
			s.folders = append(s.folders[:i], s.folders[i+1:]...)
			return f, i, true
		}
	}
	return Folder{}, -1, false
}

// InsertFolder puts a folder back at position i (used by rollback).
func (s *Store) InsertFolder(i int, f Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i > len(s.folders) {
		i = len(s.folders)
	}
	s.folders = append(s.folders, Folder{})
	copy(s.folders[i+1:], s.folders[i:])
	s.folders[i] = f
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces the settings.
func (s *Store) SetSettings(v Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
}

// Len reports the number of notes and folders held.
func (s *Store) Len() (notes, folders int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes), len(s.folders)
}

func (s *Store) putLocked(n Note) {
	n = n.Clone()
	if i := s.indexLocked(n.ID); i >= 0 {
		s.notes[i] = n
		return
	}
	s.notes = append(s.notes, n)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.notes {
		if s.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) resortLocked() {
	if s.dirty {
		SortNotes(s.notes)
		s.dirty = false
	}
}

func cloneNotes(in []Note) []Note {
	out := make([]Note, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}
