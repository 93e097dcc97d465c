package cloud

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/notesync/pkg/core"
)

// Remote procedures. Each is served at POST {base}/rpc/{procedure}.
const (
	ProcNotesList      = "notes.list"
	ProcNotesCreate    = "notes.create"
	ProcNotesUpdate    = "notes.update"
	ProcNotesDelete    = "notes.delete"
	ProcNotesMove      = "notes.move"
	ProcNotesTogglePin = "notes.togglePin"

	ProcFoldersList   = "folders.list"
	ProcFoldersCreate = "folders.create"
	ProcFoldersRename = "folders.rename"
	ProcFoldersDelete = "folders.delete"

	ProcVersionsList     = "versions.list"
	ProcVersionsGet      = "versions.get"
	ProcVersionsSnapshot = "versions.snapshot"
	ProcVersionsRestore  = "versions.restore"
)

// IDRequest addresses one entity.
type IDRequest struct {
	ID string `json:"id" binding:"required"`
}

// NoteRequest addresses the versions of one note.
type NoteRequest struct {
	NoteID string `json:"noteId" binding:"required"`
}

// UpdateNoteRequest patches a note.
type UpdateNoteRequest struct {
	ID    string         `json:"id" binding:"required"`
	Patch core.NotePatch `json:"patch"`
}

// MoveNoteRequest files a note under a folder; nil unfiles it.
type MoveNoteRequest struct {
	ID       string  `json:"id" binding:"required"`
	FolderID *string `json:"folderId"`
}

// RenameFolderRequest renames a folder.
type RenameFolderRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name" binding:"required,max=256"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError is a non-2xx reply from the remote service.
type HTTPError struct {
	Procedure  string
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Procedure, e.StatusCode, msg)
}

// KindForStatus maps an HTTP status onto the error taxonomy.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return core.ErrAuth
	case status == http.StatusNotFound:
		return core.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return core.ErrValidation
	case status == http.StatusConflict:
		return core.ErrConflict
	default:
		// 429, 5xx and anything unexpected are treated as transient
		return core.ErrNetwork
	}
}

// StatusForError is the inverse of KindForStatus, used by servers.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine readable code sent alongside a status.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrAuth):
		return "unauthorized"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrValidation):
		return "invalid"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
