package server

import (
	"github.com/gin-gonic/gin"

	"github.com/aretw0/notesync/pkg/adapters/cloud"
	"github.com/aretw0/notesync/pkg/core"
)

func (s *Server) procedures() map[string]procedure {
	return map[string]procedure{
		cloud.ProcNotesList: func(c *gin.Context, user string) (any, error) {
			return s.store.ListNotes(user), nil
		},
		cloud.ProcNotesCreate: func(c *gin.Context, user string) (any, error) {
			var in core.NoteInput
			if err := s.bind(c, "create note", &in); err != nil {
				return nil, err
			}
			n := s.store.CreateNote(user, in)
			s.changed(user, cloud.ProcNotesCreate)
			return n, nil
		},
		cloud.ProcNotesUpdate: func(c *gin.Context, user string) (any, error) {
			var req cloud.UpdateNoteRequest
			if err := s.bind(c, "update note", &req); err != nil {
				return nil, err
			}
			return s.mutated(user, cloud.ProcNotesUpdate)(s.store.UpdateNote(user, req.ID, req.Patch))
		},
		cloud.ProcNotesMove: func(c *gin.Context, user string) (any, error) {
			var req cloud.MoveNoteRequest
			if err := s.bind(c, "move note", &req); err != nil {
				return nil, err
			}
			return s.mutated(user, cloud.ProcNotesMove)(s.store.MoveNote(user, req.ID, req.FolderID))
		},
		cloud.ProcNotesDelete: func(c *gin.Context, user string) (any, error) {
			var req cloud.IDRequest
			if err := s.bind(c, "delete note", &req); err != nil {
				return nil, err
			}
			s.store.DeleteNote(user, req.ID)
			s.changed(user, cloud.ProcNotesDelete)
			return nil, nil
		},
		cloud.ProcNotesTogglePin: func(c *gin.Context, user string) (any, error) {
			var req cloud.IDRequest
			if err := s.bind(c, "toggle pin", &req); err != nil {
				return nil, err
			}
			return s.mutated(user, cloud.ProcNotesTogglePin)(s.store.TogglePin(user, req.ID))
		},

		cloud.ProcFoldersList: func(c *gin.Context, user string) (any, error) {
			return s.store.ListFolders(user), nil
		},
		cloud.ProcFoldersCreate: func(c *gin.Context, user string) (any, error) {
			var in core.FolderInput
			if err := s.bind(c, "create folder", &in); err != nil {
				return nil, err
			}
			f := s.store.CreateFolder(user, in)
			s.changed(user, cloud.ProcFoldersCreate)
			return f, nil
		},
		cloud.ProcFoldersRename: func(c *gin.Context, user string) (any, error) {
			var req cloud.RenameFolderRequest
			if err := s.bind(c, "rename folder", &req); err != nil {
				return nil, err
			}
			f, err := s.store.RenameFolder(user, req.ID, req.Name)
			if err != nil {
				return nil, err
			}
			s.changed(user, cloud.ProcFoldersRename)
			return f, nil
		},
		cloud.ProcFoldersDelete: func(c *gin.Context, user string) (any, error) {
			var req cloud.IDRequest
			if err := s.bind(c, "delete folder", &req); err != nil {
				return nil, err
			}
			s.store.DeleteFolder(user, req.ID)
			s.changed(user, cloud.ProcFoldersDelete)
			return nil, nil
		},

		cloud.ProcVersionsList: func(c *gin.Context, user string) (any, error) {
			var req cloud.NoteRequest
			if err := s.bind(c, "list versions", &req); err != nil {
				return nil, err
			}
			versions := s.store.ListVersions(user, req.NoteID)
			if versions == nil {
				versions = []core.Version{}
			}
			return versions, nil
		},
		cloud.ProcVersionsGet: func(c *gin.Context, user string) (any, error) {
			var req cloud.IDRequest
			if err := s.bind(c, "get version", &req); err != nil {
				return nil, err
			}
			v, err := s.store.GetVersion(user, req.ID)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		cloud.ProcVersionsSnapshot: func(c *gin.Context, user string) (any, error) {
			var req cloud.NoteRequest
			if err := s.bind(c, "snapshot", &req); err != nil {
				return nil, err
			}
			v, err := s.store.Snapshot(user, req.NoteID)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		cloud.ProcVersionsRestore: func(c *gin.Context, user string) (any, error) {
			var req cloud.IDRequest
			if err := s.bind(c, "restore version", &req); err != nil {
				return nil, err
			}
			return s.mutated(user, cloud.ProcVersionsRestore)(s.store.RestoreVersion(user, req.ID))
		},
	}
}

// mutated adapts a note mutation result, notifying presence clients on
// success.
func (s *Server) mutated(user, procedure string) func(core.Note, error) (any, error) {
	return func(n core.Note, err error) (any, error) {
		if err != nil {
			return nil, err
		}
		s.changed(user, procedure)
		return n, nil
	}
}
