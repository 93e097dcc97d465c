package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/notesync/pkg/core"
)

// Kind names the remote operation a queued Op performs.
type Kind string

const (
	KindCreateNote   Kind = "create_note"
	KindUpdateNote   Kind = "update_note"
	KindDeleteNote   Kind = "delete_note"
	KindSnapshot     Kind = "snapshot"
	KindCreateFolder Kind = "create_folder"
	KindUpdateFolder Kind = "update_folder"
	KindDeleteFolder Kind = "delete_folder"
)

// Op is a deferred remote write.
type Op struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	NoteID      string            `json:"noteId,omitempty"`
	FolderID    string            `json:"folderId,omitempty"`
	Note        *core.NoteInput   `json:"note,omitempty"`
	NotePatch   *core.NotePatch   `json:"notePatch,omitempty"`
	Folder      *core.FolderInput `json:"folder,omitempty"`
	FolderPatch *core.FolderPatch `json:"folderPatch,omitempty"`
	EnqueuedAt  time.Time         `json:"enqueuedAt"`
}

func CreateNote(in core.NoteInput) Op {
	return Op{Kind: KindCreateNote, NoteID: in.ID, Note: &in}
}

func UpdateNote(id string, patch core.NotePatch) Op {
	return Op{Kind: KindUpdateNote, NoteID: id, NotePatch: &patch}
}

func DeleteNote(id string) Op {
	return Op{Kind: KindDeleteNote, NoteID: id}
}

// Snapshot records a version of the note's current remote state.
func Snapshot(noteID string) Op {
	return Op{Kind: KindSnapshot, NoteID: noteID}
}

func CreateFolder(in core.FolderInput) Op {
	return Op{Kind: KindCreateFolder, FolderID: in.ID, Folder: &in}
}

func UpdateFolder(id string, patch core.FolderPatch) Op {
	return Op{Kind: KindUpdateFolder, FolderID: id, FolderPatch: &patch}
}

func DeleteFolder(id string) Op {
	return Op{Kind: KindDeleteFolder, FolderID: id}
}

// Remote is what the queue executes operations against.
type Remote interface {
	CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error)
	UpdateNote(ctx context.Context, id string, patch core.NotePatch) (core.Note, error)
	DeleteNote(ctx context.Context, id string) error
	Snapshot(ctx context.Context, noteID string) (core.Version, error)
	CreateFolder(ctx context.Context, in core.FolderInput) (core.Folder, error)
	UpdateFolder(ctx context.Context, id string, patch core.FolderPatch) (core.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

func execute(ctx context.Context, r Remote, op Op) error {
	var err error
	switch op.Kind {
	case KindCreateNote:
		if op.Note == nil {
			return core.Invalid(string(op.Kind), fmt.Errorf("missing note"))
		}
		_, err = r.CreateNote(ctx, *op.Note)
	case KindUpdateNote:
		if op.NotePatch == nil {
			return core.Invalid(string(op.Kind), fmt.Errorf("missing patch"))
		}
		_, err = r.UpdateNote(ctx, op.NoteID, *op.NotePatch)
	case KindDeleteNote:
		err = r.DeleteNote(ctx, op.NoteID)
	case KindSnapshot:
		_, err = r.Snapshot(ctx, op.NoteID)
	case KindCreateFolder:
		if op.Folder == nil {
			return core.Invalid(string(op.Kind), fmt.Errorf("missing folder"))
		}
		_, err = r.CreateFolder(ctx, *op.Folder)
	case KindUpdateFolder:
		if op.FolderPatch == nil {
			return core.Invalid(string(op.Kind), fmt.Errorf("missing patch"))
		}
		_, err = r.UpdateFolder(ctx, op.FolderID, *op.FolderPatch)
	case KindDeleteFolder:
		err = r.DeleteFolder(ctx, op.FolderID)
	default:
		return core.Invalid("execute", fmt.Errorf("unknown operation kind %q", op.Kind))
	}
	return err
}
