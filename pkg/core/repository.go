package core

import "context"

// Backend defines the storage contract shared by the local, cloud and
// embedded adapters. Every implementation is independently durable.
type Backend interface {
	// ListNotes returns every note visible to the current principal.
	ListNotes(ctx context.Context) ([]Note, error)

	// CreateNote persists a new note. A non-empty in.ID is used verbatim;
	// implementations never replace a caller-chosen id.
	CreateNote(ctx context.Context, in NoteInput) (Note, error)

	// UpdateNote merges a patch. Returns ErrNotFound when no note with that
	// id is visible.
	UpdateNote(ctx context.Context, id string, patch NotePatch) (Note, error)

	DeleteNote(ctx context.Context, id string) error

	// TogglePin flips the pin state of a note.
	TogglePin(ctx context.Context, id string) (Note, error)

	ListFolders(ctx context.Context) ([]Folder, error)
	CreateFolder(ctx context.Context, in FolderInput) (Folder, error)
	UpdateFolder(ctx context.Context, id string, patch FolderPatch) (Folder, error)

	// DeleteFolder removes the folder and rewrites folderId to nil on the
	// notes this backend holds for it. Notes are never deleted.
	DeleteFolder(ctx context.Context, id string) error

	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error)

	// Initialize ensures the underlying storage is ready (schema, directories).
	Initialize(ctx context.Context) error
}

// Searcher is implemented by backends that can filter notes by text.
type Searcher interface {
	SearchNotes(ctx context.Context, query string) ([]Note, error)
}

// Versioned is implemented by backends that keep note history.
type Versioned interface {
	ListVersions(ctx context.Context, noteID string) ([]Version, error)
	GetVersion(ctx context.Context, versionID string) (Version, error)
	Snapshot(ctx context.Context, noteID string) (Version, error)
	RestoreVersion(ctx context.Context, versionID string) (Note, error)
}

// Watchable is implemented by backends that observe changes made by other
// processes sharing the same durable storage.
type Watchable interface {
	Watch(ctx context.Context) (<-chan Event, error)
}
