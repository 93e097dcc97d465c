// Package embedded implements core.Backend on top of an embedded database
// reached through a command bridge.
//
// Everything that crosses the bridge is JSON with snake_case fields and
// ISO-8601 timestamps. Conversion between the wire records and domain
// entities happens in exactly one place, the codec in this file.
package embedded

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/notesync/pkg/core"
)

// Bridge commands.
const (
	CmdInitDB        = "init_db"
	CmdSaveNote      = "save_note"
	CmdGetAllNotes   = "get_all_notes"
	CmdGetNote       = "get_note"
	CmdDeleteNote    = "delete_note"
	CmdTogglePin     = "toggle_pin"
	CmdSaveFolder    = "save_folder"
	CmdGetAllFolders = "get_all_folders"
	CmdDeleteFolder  = "delete_folder"
	CmdSearchNotes   = "search_notes"
)

// Bridge invokes a named command with JSON-serializable args and decodes
// the result into out. out may be nil when the result is ignored.
type Bridge interface {
	Invoke(ctx context.Context, command string, args any, out any) error
}

// NoteRecord is the wire shape of a note.
type NoteRecord struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	FolderID  *string `json:"folder_id"`
	IsPinned  bool    `json:"is_pinned"`
	PinnedAt  *string `json:"pinned_at"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// FolderRecord is the wire shape of a folder.
type FolderRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// IDArgs addresses a single entity.
type IDArgs struct {
	ID string `json:"id"`
}

// NoteArgs carries a note to save.
type NoteArgs struct {
	Note NoteRecord `json:"note"`
}

// FolderArgs carries a folder to save.
type FolderArgs struct {
	Folder FolderRecord `json:"folder"`
}

// QueryArgs carries a search query.
type QueryArgs struct {
	Query string `json:"query"`
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodeNote(n core.Note) NoteRecord {
	r := NoteRecord{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		IsPinned:  n.IsPinned,
		CreatedAt: encodeTime(n.CreatedAt),
		UpdatedAt: encodeTime(n.UpdatedAt),
	}
	if n.FolderID != nil {
		id := *n.FolderID
		r.FolderID = &id
	}
	if n.PinnedAt != nil {
		at := encodeTime(*n.PinnedAt)
		r.PinnedAt = &at
	}
	return r
}

func decodeNote(r NoteRecord) (core.Note, error) {
	created, err := decodeTime(r.CreatedAt)
	if err != nil {
		return core.Note{}, err
	}
	updated, err := decodeTime(r.UpdatedAt)
	if err != nil {
		return core.Note{}, err
	}
	n := core.Note{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		IsPinned:  r.IsPinned,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	if r.FolderID != nil {
		n.FolderID = core.FolderRef(*r.FolderID)
	}
	if r.PinnedAt != nil {
		at, err := decodeTime(*r.PinnedAt)
		if err != nil {
			return core.Note{}, err
		}
		n.PinnedAt = &at
	}
	return n, nil
}

func decodeNotes(records []NoteRecord) ([]core.Note, error) {
	notes := make([]core.Note, 0, len(records))
	for _, r := range records {
		n, err := decodeNote(r)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", r.ID, err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func encodeFolder(f core.Folder) FolderRecord {
	return FolderRecord{ID: f.ID, Name: f.Name, CreatedAt: encodeTime(f.CreatedAt)}
}

func decodeFolder(r FolderRecord) (core.Folder, error) {
	created, err := decodeTime(r.CreatedAt)
	if err != nil {
		return core.Folder{}, fmt.Errorf("folder %s: %w", r.ID, err)
	}
	return core.Folder{ID: r.ID, Name: r.Name, CreatedAt: created}, nil
}
