// Package cloud implements core.Backend against the hosted notesync service.
//
// Records are scoped server-side to the authenticated principal; a note
// owned by someone else is indistinguishable from a missing one. Settings
// have no remote procedure and stay in the device key-value store.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// Repository implements core.Backend and core.Versioned over RPC.
type Repository struct {
	client *Client
	kv     kv.Store
}

// Config holds the configuration for the cloud repository.
type Config struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	// KV holds the settings record.
	KV     kv.Store
	Logger *slog.Logger
}

// NewRepository creates a cloud repository.
func NewRepository(config Config) *Repository {
	if config.KV == nil {
		config.KV = kv.NewMemoryStore()
	}
	return &Repository{
		client: NewClient(config.BaseURL, config.Tokens, config.HTTPClient, config.Logger),
		kv:     config.KV,
	}
}

// Client exposes the RPC client.
func (r *Repository) Client() *Client {
	return r.client
}

// Initialize implements core.Backend. The remote service needs no setup.
func (r *Repository) Initialize(ctx context.Context) error {
	return nil
}

func (r *Repository) ListNotes(ctx context.Context) ([]core.Note, error) {
	var notes []core.Note
	if err := r.client.Call(ctx, ProcNotesList, nil, &notes); err != nil {
		return nil, err
	}
	core.SortNotes(notes)
	return notes, nil
}

func (r *Repository) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	if strings.TrimSpace(in.ID) == "" {
		return core.Note{}, core.Invalid("create note", fmt.Errorf("id is required"))
	}
	var n core.Note
	err := r.client.Call(ctx, ProcNotesCreate, in, &n)
	return n, err
}

// UpdateNote uses the move procedure when the patch only refiles the note.
func (r *Repository) UpdateNote(ctx context.Context, id string, patch core.NotePatch) (core.Note, error) {
	var n core.Note
	if patch.FolderID != nil && patch.Title == nil && patch.Content == nil && patch.IsPinned == nil {
		err := r.client.Call(ctx, ProcNotesMove, MoveNoteRequest{ID: id, FolderID: core.FolderRef(*patch.FolderID)}, &n)
		return n, err
	}
	err := r.client.Call(ctx, ProcNotesUpdate, UpdateNoteRequest{ID: id, Patch: patch}, &n)
	return n, err
}

func (r *Repository) DeleteNote(ctx context.Context, id string) error {
	return r.client.Call(ctx, ProcNotesDelete, IDRequest{ID: id}, nil)
}

func (r *Repository) TogglePin(ctx context.Context, id string) (core.Note, error) {
	var n core.Note
	err := r.client.Call(ctx, ProcNotesTogglePin, IDRequest{ID: id}, &n)
	return n, err
}

func (r *Repository) ListFolders(ctx context.Context) ([]core.Folder, error) {
	var folders []core.Folder
	if err := r.client.Call(ctx, ProcFoldersList, nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *Repository) CreateFolder(ctx context.Context, in core.FolderInput) (core.Folder, error) {
	if strings.TrimSpace(in.ID) == "" {
		return core.Folder{}, core.Invalid("create folder", fmt.Errorf("id is required"))
	}
	var f core.Folder
	err := r.client.Call(ctx, ProcFoldersCreate, in, &f)
	return f, err
}

func (r *Repository) UpdateFolder(ctx context.Context, id string, patch core.FolderPatch) (core.Folder, error) {
	if patch.Name == nil {
		folders, err := r.ListFolders(ctx)
		if err != nil {
			return core.Folder{}, err
		}
		for _, f := range folders {
			if f.ID == id {
				return f, nil
			}
		}
		return core.Folder{}, core.NotFound("update folder", id)
	}
	var f core.Folder
	err := r.client.Call(ctx, ProcFoldersRename, RenameFolderRequest{ID: id, Name: *patch.Name}, &f)
	return f, err
}

// DeleteFolder removes the folder. The remote side unfiles its notes.
func (r *Repository) DeleteFolder(ctx context.Context, id string) error {
	return r.client.Call(ctx, ProcFoldersDelete, IDRequest{ID: id}, nil)
}

func (r *Repository) GetSettings(ctx context.Context) (core.Settings, error) {
	return local.LoadSettings(r.kv)
}

func (r *Repository) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	return local.SaveSettings(r.kv, patch)
}

func (r *Repository) ListVersions(ctx context.Context, noteID string) ([]core.Version, error) {
	var versions []core.Version
	if err := r.client.Call(ctx, ProcVersionsList, NoteRequest{NoteID: noteID}, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *Repository) GetVersion(ctx context.Context, versionID string) (core.Version, error) {
	var v core.Version
	err := r.client.Call(ctx, ProcVersionsGet, IDRequest{ID: versionID}, &v)
	return v, err
}

func (r *Repository) Snapshot(ctx context.Context, noteID string) (core.Version, error) {
	var v core.Version
	err := r.client.Call(ctx, ProcVersionsSnapshot, NoteRequest{NoteID: noteID}, &v)
	return v, err
}

func (r *Repository) RestoreVersion(ctx context.Context, versionID string) (core.Note, error) {
	var n core.Note
	err := r.client.Call(ctx, ProcVersionsRestore, IDRequest{ID: versionID}, &n)
	return n, err
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "cloud"
}

var _ core.Backend = (*Repository)(nil)
var _ core.Versioned = (*Repository)(nil)
