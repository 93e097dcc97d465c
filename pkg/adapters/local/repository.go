// Package local implements core.Backend on device key-value storage.
//
// Notes, folders and settings are three independent JSON records, each
// stored whole under its own key. Every write rewrites the entire
// collection.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// Keys under which the collections are stored.
const (
	KeyNotes    = "notes"
	KeyFolders  = "folders"
	KeySettings = "settings"
)

// Repository implements core.Backend using a kv.Store.
type Repository struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time

	// serializes read-modify-write cycles on the collections
	mu sync.Mutex
}

// Config holds the configuration for the local repository.
type Config struct {
	Store  kv.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// NewRepository creates a local repository.
func NewRepository(config Config) *Repository {
	if config.Store == nil {
		config.Store = kv.NewMemoryStore()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Repository{
		store:  config.Store,
		logger: config.Logger,
		now:    config.Now,
	}
}

// Initialize implements core.Backend. Device storage needs no setup.
func (r *Repository) Initialize(ctx context.Context) error {
	return nil
}

func (r *Repository) ListNotes(ctx context.Context) ([]core.Note, error) {
	notes, err := r.loadNotes()
	if err != nil {
		return nil, err
	}
	core.SortNotes(notes)
	return notes, nil
}

func (r *Repository) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	if strings.TrimSpace(in.ID) == "" {
		return core.Note{}, core.Invalid("create note", fmt.Errorf("id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.loadNotes()
	if err != nil {
		return core.Note{}, err
	}
	note := in.Build(r.now())
	replaced := false
	for i := range notes {
		if notes[i].ID == note.ID {
			notes[i] = note
			replaced = true
			break
		}
	}
	if !replaced {
		notes = append(notes, note)
	}
	if err := r.saveNotes(notes); err != nil {
		return core.Note{}, err
	}
	return note, nil
}

func (r *Repository) UpdateNote(ctx context.Context, id string, patch core.NotePatch) (core.Note, error) {
	return r.mutateNote("update note", id, func(n *core.Note) {
		n.Apply(patch, r.now())
	})
}

func (r *Repository) TogglePin(ctx context.Context, id string) (core.Note, error) {
	return r.mutateNote("toggle pin", id, func(n *core.Note) {
		n.TogglePin(r.now())
	})
}

func (r *Repository) DeleteNote(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.loadNotes()
	if err != nil {
		return err
	}
	kept := notes[:0]
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	return r.saveNotes(kept)
}

func (r *Repository) ListFolders(ctx context.Context) ([]core.Folder, error) {
	return r.loadFolders()
}

func (r *Repository) CreateFolder(ctx context.Context, in core.FolderInput) (core.Folder, error) {
	if strings.TrimSpace(in.ID) == "" {
		return core.Folder{}, core.Invalid("create folder", fmt.Errorf("id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	folders, err := r.loadFolders()
	if err != nil {
		return core.Folder{}, err
	}
	folder := core.Folder{ID: in.ID, Name: in.Name, CreatedAt: r.now()}
	replaced := false
	for i := range folders {
		if folders[i].ID == folder.ID {
			folder.CreatedAt = folders[i].CreatedAt
			folders[i] = folder
			replaced = true
			break
		}
	}
	if !replaced {
		folders = append(folders, folder)
	}
	if err := r.saveFolders(folders); err != nil {
		return core.Folder{}, err
	}
	return folder, nil
}

func (r *Repository) UpdateFolder(ctx context.Context, id string, patch core.FolderPatch) (core.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	folders, err := r.loadFolders()
	if err != nil {
		return core.Folder{}, err
	}
	for i := range folders {
		if folders[i].ID != id {
			continue
		}
		if patch.Name != nil {
			folders[i].Name = *patch.Name
		}
		if err := r.saveFolders(folders); err != nil {
			return core.Folder{}, err
		}
		return folders[i], nil
	}
	return core.Folder{}, core.NotFound("update folder", id)
}

// DeleteFolder removes the folder and unfiles its notes.
func (r *Repository) DeleteFolder(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	folders, err := r.loadFolders()
	if err != nil {
		return err
	}
	kept := folders[:0]
	for _, f := range folders {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	if err := r.saveFolders(kept); err != nil {
		return err
	}

	notes, err := r.loadNotes()
	if err != nil {
		return err
	}
	changed := false
	for i := range notes {
		if notes[i].InFolder(id) {
			notes[i].FolderID = nil
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.saveNotes(notes)
}

func (r *Repository) GetSettings(ctx context.Context) (core.Settings, error) {
	return LoadSettings(r.store)
}

func (r *Repository) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return SaveSettings(r.store, patch)
}

// SearchNotes implements core.Searcher with a case-insensitive substring
// match on title and content.
func (r *Repository) SearchNotes(ctx context.Context, query string) ([]core.Note, error) {
	notes, err := r.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	return FilterNotes(notes, query), nil
}

// Watch implements core.Watchable when the underlying store can observe
// writes made by other processes.
func (r *Repository) Watch(ctx context.Context) (<-chan core.Event, error) {
	w, ok := r.store.(interface {
		Watch(ctx context.Context, pattern string) (<-chan kv.Change, error)
	})
	if !ok {
		return nil, fmt.Errorf("store does not support watching")
	}
	changes, err := w.Watch(ctx, "{"+KeyNotes+","+KeyFolders+","+KeySettings+"}")
	if err != nil {
		return nil, err
	}
	out := make(chan core.Event)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		for c := range changes {
			e := core.Event{Type: core.EventModify, ID: c.Key, Timestamp: r.now().Unix()}
			if c.Op == kv.OpDelete {
				e.Type = core.EventDelete
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	return out, nil
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "local"
}

func (r *Repository) mutateNote(op, id string, fn func(*core.Note)) (core.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.loadNotes()
	if err != nil {
		return core.Note{}, err
	}
	for i := range notes {
		if notes[i].ID != id {
			continue
		}
		fn(&notes[i])
		if err := r.saveNotes(notes); err != nil {
			return core.Note{}, err
		}
		return notes[i], nil
	}
	return core.Note{}, core.NotFound(op, id)
}

func (r *Repository) loadNotes() ([]core.Note, error) {
	var notes []core.Note
	if err := readJSON(r.store, KeyNotes, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *Repository) saveNotes(notes []core.Note) error {
	if notes == nil {
		notes = []core.Note{}
	}
	return writeJSON(r.store, KeyNotes, notes)
}

func (r *Repository) loadFolders() ([]core.Folder, error) {
	var folders []core.Folder
	if err := readJSON(r.store, KeyFolders, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *Repository) saveFolders(folders []core.Folder) error {
	if folders == nil {
		folders = []core.Folder{}
	}
	return writeJSON(r.store, KeyFolders, folders)
}

// FilterNotes keeps the notes whose title or content contains query,
// ignoring case. An empty query keeps everything.
func FilterNotes(notes []core.Note, query string) []core.Note {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return notes
	}
	var out []core.Note
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), query) || strings.Contains(strings.ToLower(n.Content), query) {
			out = append(out, n)
		}
	}
	return out
}

var _ core.Backend = (*Repository)(nil)
var _ core.Searcher = (*Repository)(nil)
var _ core.Watchable = (*Repository)(nil)
