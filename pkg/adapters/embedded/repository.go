package embedded

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/notesync/internal/database"
	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// Repository implements core.Backend over a Bridge. Settings are not part of
// the embedded schema and live in the key-value store instead.
type Repository struct {
	bridge Bridge
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// Config holds the configuration for the embedded repository.
type Config struct {
	Bridge Bridge
	// KV holds the settings record.
	KV     kv.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// NewRepository creates an embedded repository.
func NewRepository(config Config) *Repository {
	if config.KV == nil {
		config.KV = kv.NewMemoryStore()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Repository{
		bridge: config.Bridge,
		kv:     config.KV,
		logger: config.Logger,
		now:    config.Now,
	}
}

// OpenSQLite opens (and migrates) the database at path and returns a
// repository bridged to it. Close releases the database.
func OpenSQLite(path string, store kv.Store, logger *slog.Logger) (*Repository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, "open embedded database", err)
	}
	return NewRepository(Config{Bridge: NewSQLiteBridge(db), KV: store, Logger: logger}), nil
}

// Close releases the bridge when it holds resources.
func (r *Repository) Close() error {
	if c, ok := r.bridge.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Repository) Initialize(ctx context.Context) error {
	return r.invoke(ctx, "initialize", CmdInitDB, nil, nil)
}

func (r *Repository) ListNotes(ctx context.Context) ([]core.Note, error) {
	var records []NoteRecord
	if err := r.invoke(ctx, "list notes", CmdGetAllNotes, nil, &records); err != nil {
		return nil, err
	}
	notes, err := decodeNotes(records)
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, "list notes", err)
	}
	core.SortNotes(notes)
	return notes, nil
}

func (r *Repository) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	if strings.TrimSpace(in.ID) == "" {
		return core.Note{}, core.Invalid("create note", fmt.Errorf("id is required"))
	}
	return r.saveNote(ctx, "create note", in.Build(r.now()))
}

func (r *Repository) UpdateNote(ctx context.Context, id string, patch core.NotePatch) (core.Note, error) {
	n, err := r.getNote(ctx, "update note", id)
	if err != nil {
		return core.Note{}, err
	}
	n.Apply(patch, r.now())
	return r.saveNote(ctx, "update note", n)
}

func (r *Repository) DeleteNote(ctx context.Context, id string) error {
	return r.invoke(ctx, "delete note", CmdDeleteNote, IDArgs{ID: id}, nil)
}

func (r *Repository) TogglePin(ctx context.Context, id string) (core.Note, error) {
	var rec *NoteRecord
	if err := r.invoke(ctx, "toggle pin", CmdTogglePin, IDArgs{ID: id}, &rec); err != nil {
		return core.Note{}, err
	}
	if rec == nil {
		return core.Note{}, core.NotFound("toggle pin", id)
	}
	return r.decode("toggle pin", *rec)
}

func (r *Repository) ListFolders(ctx context.Context) ([]core.Folder, error) {
	var records []FolderRecord
	if err := r.invoke(ctx, "list folders", CmdGetAllFolders, nil, &records); err != nil {
		return nil, err
	}
	folders := make([]core.Folder, 0, len(records))
	for _, rec := range records {
		f, err := decodeFolder(rec)
		if err != nil {
			return nil, core.Wrap(core.ErrStorage, "list folders", err)
		}
		folders = append(folders, f)
	}
	return folders, nil
}

func (r *Repository) CreateFolder(ctx context.Context, in core.FolderInput) (core.Folder, error) {
	if strings.TrimSpace(in.ID) == "" {
		return core.Folder{}, core.Invalid("create folder", fmt.Errorf("id is required"))
	}
	return r.saveFolder(ctx, "create folder", core.Folder{ID: in.ID, Name: in.Name, CreatedAt: r.now()})
}

func (r *Repository) UpdateFolder(ctx context.Context, id string, patch core.FolderPatch) (core.Folder, error) {
	folders, err := r.ListFolders(ctx)
	if err != nil {
		return core.Folder{}, err
	}
	for _, f := range folders {
		if f.ID != id {
			continue
		}
		if patch.Name != nil {
			f.Name = *patch.Name
		}
		return r.saveFolder(ctx, "update folder", f)
	}
	return core.Folder{}, core.NotFound("update folder", id)
}

func (r *Repository) DeleteFolder(ctx context.Context, id string) error {
	return r.invoke(ctx, "delete folder", CmdDeleteFolder, IDArgs{ID: id}, nil)
}

func (r *Repository) GetSettings(ctx context.Context) (core.Settings, error) {
	return local.LoadSettings(r.kv)
}

func (r *Repository) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	return local.SaveSettings(r.kv, patch)
}

// SearchNotes implements core.Searcher using the database's LIKE matching.
func (r *Repository) SearchNotes(ctx context.Context, query string) ([]core.Note, error) {
	var records []NoteRecord
	if err := r.invoke(ctx, "search notes", CmdSearchNotes, QueryArgs{Query: query}, &records); err != nil {
		return nil, err
	}
	notes, err := decodeNotes(records)
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, "search notes", err)
	}
	core.SortNotes(notes)
	return notes, nil
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "embedded"
}

func (r *Repository) getNote(ctx context.Context, op, id string) (core.Note, error) {
	var rec *NoteRecord
	if err := r.invoke(ctx, op, CmdGetNote, IDArgs{ID: id}, &rec); err != nil {
		return core.Note{}, err
	}
	if rec == nil {
		return core.Note{}, core.NotFound(op, id)
	}
	return r.decode(op, *rec)
}

func (r *Repository) saveNote(ctx context.Context, op string, n core.Note) (core.Note, error) {
	var rec *NoteRecord
	if err := r.invoke(ctx, op, CmdSaveNote, NoteArgs{Note: encodeNote(n)}, &rec); err != nil {
		return core.Note{}, err
	}
	if rec == nil {
		return core.Note{}, core.Wrap(core.ErrStorage, op, fmt.Errorf("note %s vanished after save", n.ID))
	}
	return r.decode(op, *rec)
}

func (r *Repository) saveFolder(ctx context.Context, op string, f core.Folder) (core.Folder, error) {
	var rec FolderRecord
	if err := r.invoke(ctx, op, CmdSaveFolder, FolderArgs{Folder: encodeFolder(f)}, &rec); err != nil {
		return core.Folder{}, err
	}
	folder, err := decodeFolder(rec)
	if err != nil {
		return core.Folder{}, core.Wrap(core.ErrStorage, op, err)
	}
	return folder, nil
}

func (r *Repository) decode(op string, rec NoteRecord) (core.Note, error) {
	n, err := decodeNote(rec)
	if err != nil {
		return core.Note{}, core.Wrap(core.ErrStorage, op, err)
	}
	return n, nil
}

func (r *Repository) invoke(ctx context.Context, op, command string, args, out any) error {
	if r.bridge == nil {
		return core.Wrap(core.ErrStorage, op, fmt.Errorf("no bridge configured"))
	}
	if err := r.bridge.Invoke(ctx, command, args, out); err != nil {
		r.logger.Debug("bridge command failed", "command", command, "error", err)
		return core.Wrap(core.ErrStorage, op, err)
	}
	return nil
}

var _ core.Backend = (*Repository)(nil)
var _ core.Searcher = (*Repository)(nil)
