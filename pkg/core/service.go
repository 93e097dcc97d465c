package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service applies every user-facing mutation optimistically: the Store is
// updated before the durable write is issued, and restored from a snapshot
// if the write fails. Concurrent mutations of the same entity are not
// locked against each other; the last write wins.
type Service struct {
	backend  Backend
	store    *Store
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used to report rollbacks.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides id generation (tests).
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService creates a Service writing through backend into store.
func NewService(backend Backend, store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		backend:  backend,
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the entity store backing the service.
func (s *Service) Store() *Store {
	return s.store
}

// Load replaces the store contents with what the backend holds.
func (s *Service) Load(ctx context.Context) error {
	notes, err := s.backend.ListNotes(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	folders, err := s.backend.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	settings, err := s.backend.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.store.ReplaceNotes(notes)
	s.store.ReplaceFolders(folders)
	s.store.SetSettings(settings)
	return nil
}

// ListNotes returns the notes in display order.
func (s *Service) ListNotes() []Note {
	return s.store.Notes()
}

// ListFolders returns the folders in creation order.
func (s *Service) ListFolders() []Folder {
	return s.store.Folders()
}

// CreateNote adds a note with a client-generated id when none is given.
func (s *Service) CreateNote(ctx context.Context, in NoteInput) (Note, error) {
	if err := s.check("create note", in); err != nil {
		return Note{}, err
	}
	if in.ID == "" {
		in.ID = s.newID()
	}
	if _, exists := s.store.Note(in.ID); exists {
		return Note{}, Invalid("create note", fmt.Errorf("note %s already exists", in.ID))
	}
	now := s.now()
	note := in.Build(now)
	in.CreatedAt = &note.CreatedAt
	in.UpdatedAt = &note.UpdatedAt
	in.PinnedAt = note.PinnedAt

	s.store.PutNote(note)
	if _, err := s.backend.CreateNote(ctx, in); err != nil {
		s.store.RemoveNote(note.ID)
		return Note{}, s.rollback("create note", note.ID, err)
	}
	return note, nil
}

// UpdateNote merges patch into the note.
func (s *Service) UpdateNote(ctx context.Context, id string, patch NotePatch) (Note, error) {
	if err := s.check("update note", patch); err != nil {
		return Note{}, err
	}
	prev, ok := s.store.Note(id)
	if !ok {
		return Note{}, NotFound("update note", id)
	}
	next := prev.Clone()
	next.Apply(patch, s.now())

	s.store.PutNote(next)
	if _, err := s.backend.UpdateNote(ctx, id, patch); err != nil {
		s.store.PutNote(prev)
		return Note{}, s.rollback("update note", id, err)
	}
	return next, nil
}

// MoveNote files the note under folderID; "" unfiles it.
func (s *Service) MoveNote(ctx context.Context, id, folderID string) (Note, error) {
	if folderID != "" {
		if _, ok := s.store.Folder(folderID); !ok {
			return Note{}, NotFound("move note", folderID)
		}
	}
	return s.UpdateNote(ctx, id, NotePatch{FolderID: &folderID})
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	prev, existed := s.store.RemoveNote(id)
	if err := s.backend.DeleteNote(ctx, id); err != nil {
		if existed {
			s.store.PutNote(prev)
		}
		return s.rollback("delete note", id, err)
	}
	return nil
}

// TogglePin flips the pin state of a note.
func (s *Service) TogglePin(ctx context.Context, id string) (Note, error) {
	prev, ok := s.store.Note(id)
	if !ok {
		return Note{}, NotFound("toggle pin", id)
	}
	next := prev.Clone()
	next.TogglePin(s.now())

	s.store.PutNote(next)
	if _, err := s.backend.TogglePin(ctx, id); err != nil {
		s.store.PutNote(prev)
		return Note{}, s.rollback("toggle pin", id, err)
	}
	return next, nil
}

// CreateFolder adds a folder with a client-generated id when none is given.
func (s *Service) CreateFolder(ctx context.Context, in FolderInput) (Folder, error) {
	if err := s.check("create folder", in); err != nil {
		return Folder{}, err
	}
	if in.ID == "" {
		in.ID = s.newID()
	}
	folder := Folder{ID: in.ID, Name: in.Name, CreatedAt: s.now()}

	s.store.PutFolder(folder)
	if _, err := s.backend.CreateFolder(ctx, in); err != nil {
		s.store.RemoveFolder(folder.ID)
		return Folder{}, s.rollback("create folder", folder.ID, err)
	}
	return folder, nil
}

// UpdateFolder renames a folder.
func (s *Service) UpdateFolder(ctx context.Context, id string, patch FolderPatch) (Folder, error) {
	if err := s.check("update folder", patch); err != nil {
		return Folder{}, err
	}
	prev, ok := s.store.Folder(id)
	if !ok {
		return Folder{}, NotFound("update folder", id)
	}
	next := prev
	if patch.Name != nil {
		next.Name = *patch.Name
	}

	s.store.PutFolder(next)
	if _, err := s.backend.UpdateFolder(ctx, id, patch); err != nil {
		s.store.PutFolder(prev)
		return Folder{}, s.rollback("update folder", id, err)
	}
	return next, nil
}

// DeleteFolder removes a folder and unfiles its notes in one step.
// Notes are never deleted with their folder.
func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	folder, pos, existed := s.store.RemoveFolder(id)
	unfiled := s.store.ClearFolder(id)

	if err := s.backend.DeleteFolder(ctx, id); err != nil {
		if existed {
			s.store.InsertFolder(pos, folder)
		}
		for _, n := range unfiled {
			s.store.PutNote(n)
		}
		return s.rollback("delete folder", id, err)
	}
	return nil
}

// UpdateSettings merges patch into the settings.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	if err := s.check("update settings", patch); err != nil {
		return Settings{}, err
	}
	if patch.SyncStatus != nil && !patch.SyncStatus.Valid() {
		return Settings{}, Invalid("update settings", fmt.Errorf("unknown sync status %q", *patch.SyncStatus))
	}
	prev := s.store.Settings()
	next := prev
	next.Apply(patch)

	s.store.SetSettings(next)
	if _, err := s.backend.UpdateSettings(ctx, patch); err != nil {
		s.store.SetSettings(prev)
		return Settings{}, s.rollback("update settings", "", err)
	}
	return next, nil
}

// EditNote applies a patch to the store only, without resorting and without
// a durable write. It is the fast path for live typing; call FlushNote (or
// enqueue the change) to persist it.
func (s *Service) EditNote(id string, patch NotePatch) (Note, error) {
	prev, ok := s.store.Note(id)
	if !ok {
		return Note{}, NotFound("edit note", id)
	}
	next := prev.Clone()
	next.Apply(patch, s.now())
	s.store.PutNoteUnsorted(next)
	return next, nil
}

// FlushNote persists the in-store title, content and folder of a note that
// was changed through EditNote. Nothing is rolled back on failure since the
// edits are the user's latest intent.
func (s *Service) FlushNote(ctx context.Context, id string) error {
	patch, ok := s.DraftPatch(id)
	if !ok {
		return NotFound("flush note", id)
	}
	if _, err := s.backend.UpdateNote(ctx, id, patch); err != nil {
		return fmt.Errorf("flush note %s: %w", id, err)
	}
	return nil
}

// DraftPatch builds a patch carrying the current in-store state of a note.
func (s *Service) DraftPatch(id string) (NotePatch, bool) {
	n, ok := s.store.Note(id)
	if !ok {
		return NotePatch{}, false
	}
	folder := ""
	if n.FolderID != nil {
		folder = *n.FolderID
	}
	return NotePatch{Title: &n.Title, Content: &n.Content, FolderID: &folder}, true
}

func (s *Service) check(op string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return Invalid(op, verrs)
		}
		return Invalid(op, err)
	}
	return nil
}

func (s *Service) rollback(op, id string, err error) error {
	s.logger.Warn("mutation rolled back", "op", op, "id", id, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}
