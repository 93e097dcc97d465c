package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownCommand is returned for commands the bridge does not serve.
var ErrUnknownCommand = errors.New("unknown command")

type handler func(ctx context.Context, args json.RawMessage) (any, error)

// SQLiteBridge serves the bridge commands from a SQLite database. Args and
// results are round-tripped through JSON so callers see exactly what a
// remote bridge would send.
type SQLiteBridge struct {
	db       *sql.DB
	now      func() time.Time
	handlers map[string]handler
}

// NewSQLiteBridge wraps an open, migrated database.
func NewSQLiteBridge(db *sql.DB) *SQLiteBridge {
	b := &SQLiteBridge{db: db, now: time.Now}
	b.handlers = map[string]handler{
		CmdInitDB:        b.initDB,
		CmdSaveNote:      b.saveNote,
		CmdGetAllNotes:   b.getAllNotes,
		CmdGetNote:       b.getNote,
		CmdDeleteNote:    b.deleteNote,
		CmdTogglePin:     b.togglePin,
		CmdSaveFolder:    b.saveFolder,
		CmdGetAllFolders: b.getAllFolders,
		CmdDeleteFolder:  b.deleteFolder,
		CmdSearchNotes:   b.searchNotes,
	}
	return b
}

// Close closes the underlying database.
func (b *SQLiteBridge) Close() error {
	return b.db.Close()
}

func (b *SQLiteBridge) Invoke(ctx context.Context, command string, args any, out any) error {
	h, ok := b.handlers[command]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: encode args: %w", command, err)
	}
	result, err := h(ctx, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: encode result: %w", command, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", command, err)
	}
	return nil
}

func (b *SQLiteBridge) initDB(ctx context.Context, _ json.RawMessage) (any, error) {
	return nil, b.db.PingContext(ctx)
}

const noteColumns = `id, title, content, folder_id, is_pinned, pinned_at, created_at, updated_at`

func (b *SQLiteBridge) saveNote(ctx context.Context, raw json.RawMessage) (any, error) {
	var args NoteArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	n := args.Note
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   folder_id = excluded.folder_id,
		   is_pinned = excluded.is_pinned,
		   pinned_at = excluded.pinned_at,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		n.ID, n.Title, n.Content, n.FolderID, n.IsPinned, n.PinnedAt, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	return b.findNote(ctx, n.ID)
}

func (b *SQLiteBridge) getAllNotes(ctx context.Context, _ json.RawMessage) (any, error) {
	return b.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY updated_at DESC`)
}

func (b *SQLiteBridge) getNote(ctx context.Context, raw json.RawMessage) (any, error) {
	var args IDArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return b.findNote(ctx, args.ID)
}

func (b *SQLiteBridge) deleteNote(ctx context.Context, raw json.RawMessage) (any, error) {
	var args IDArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, args.ID); err != nil {
		return nil, fmt.Errorf("delete note: %w", err)
	}
	return nil, nil
}

// togglePin flips the pin flag in place. A missing note yields null.
func (b *SQLiteBridge) togglePin(ctx context.Context, raw json.RawMessage) (any, error) {
	var args IDArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	now := b.now().UTC().Format(timeLayout)
	_, err := b.db.ExecContext(ctx,
		`UPDATE notes SET
		   is_pinned = CASE is_pinned WHEN 1 THEN 0 ELSE 1 END,
		   pinned_at = CASE is_pinned WHEN 1 THEN NULL ELSE ? END,
		   updated_at = ?
		 WHERE id = ?`,
		now, now, args.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle pin: %w", err)
	}
	return b.findNote(ctx, args.ID)
}

func (b *SQLiteBridge) saveFolder(ctx context.Context, raw json.RawMessage) (any, error) {
	var args FolderArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	f := args.Folder
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO folders (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		f.ID, f.Name, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save folder: %w", err)
	}
	var out FolderRecord
	err = b.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM folders WHERE id = ?`, f.ID).
		Scan(&out.ID, &out.Name, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("reload folder: %w", err)
	}
	return out, nil
}

func (b *SQLiteBridge) getAllFolders(ctx context.Context, _ json.RawMessage) (any, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, name, created_at FROM folders ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []FolderRecord{}
	for rows.Next() {
		var f FolderRecord
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// deleteFolder removes the folder and unfiles its notes in one transaction.
func (b *SQLiteBridge) deleteFolder(ctx context.Context, raw json.RawMessage) (any, error) {
	var args IDArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = ?`, args.ID); err != nil {
		return nil, fmt.Errorf("unfile notes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, args.ID); err != nil {
		return nil, fmt.Errorf("delete folder: %w", err)
	}
	return nil, tx.Commit()
}

func (b *SQLiteBridge) searchNotes(ctx context.Context, raw json.RawMessage) (any, error) {
	var args QueryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	pattern := "%" + args.Query + "%"
	return b.queryNotes(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE title LIKE ? OR content LIKE ?
		 ORDER BY updated_at DESC`,
		pattern, pattern,
	)
}

func (b *SQLiteBridge) findNote(ctx context.Context, id string) (*NoteRecord, error) {
	notes, err := b.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}

func (b *SQLiteBridge) queryNotes(ctx context.Context, query string, args ...any) ([]NoteRecord, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	notes := []NoteRecord{}
	for rows.Next() {
		var (
			n        NoteRecord
			folderID sql.NullString
			pinnedAt sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &folderID, &n.IsPinned, &pinnedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if folderID.Valid {
			n.FolderID = &folderID.String
		}
		if pinnedAt.Valid {
			n.PinnedAt = &pinnedAt.String
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

var _ Bridge = (*SQLiteBridge)(nil)
