// Package core holds the domain of notesync: entities, the backend contract,
// the in-memory entity store and the optimistic mutation service.
package core

import "time"

// SyncStatus reports whether the local view has reached the durable backend.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusUnsynced SyncStatus = "unsynced"
	SyncStatusSyncing  SyncStatus = "syncing"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusSynced, SyncStatusUnsynced, SyncStatusSyncing:
		return true
	}
	return false
}

// Note is the central entity of the domain.
// Title and Content are empty when null; Content is opaque serialized
// rich-text state. A nil FolderID means the note is unfiled.
type Note struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	FolderID  *string    `json:"folderId"`
	IsPinned  bool       `json:"isPinned"`
	PinnedAt  *time.Time `json:"pinnedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SetPinned moves the note into the requested pin state.
// PinnedAt is stamped only on the false->true transition and cleared on
// true->false, so IsPinned == (PinnedAt != nil) holds afterwards.
func (n *Note) SetPinned(pinned bool, now time.Time) {
	switch {
	case pinned && !n.IsPinned:
		t := now
		n.IsPinned = true
		n.PinnedAt = &t
	case !pinned:
		n.IsPinned = false
		n.PinnedAt = nil
	case pinned && n.PinnedAt == nil:
		t := now
		n.PinnedAt = &t
	}
}

// TogglePin flips the pin state and refreshes UpdatedAt.
func (n *Note) TogglePin(now time.Time) {
	n.SetPinned(!n.IsPinned, now)
	n.UpdatedAt = now
}

// Apply merges a patch into the note and refreshes UpdatedAt.
func (n *Note) Apply(p NotePatch, now time.Time) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.FolderID != nil {
		n.FolderID = FolderRef(*p.FolderID)
	}
	if p.IsPinned != nil {
		n.SetPinned(*p.IsPinned, now)
	}
	n.UpdatedAt = now
}

// InFolder reports whether the note is filed under folderID.
func (n Note) InFolder(folderID string) bool {
	return n.FolderID != nil && *n.FolderID == folderID
}

// Clone returns a deep copy so snapshots never alias live pointers.
func (n Note) Clone() Note {
	if n.FolderID != nil {
		f := *n.FolderID
		n.FolderID = &f
	}
	if n.PinnedAt != nil {
		t := *n.PinnedAt
		n.PinnedAt = &t
	}
	return n
}

// FolderRef converts an id into a folder reference; "" means unfiled.
func FolderRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// Folder groups notes. Folders have no ordering beyond creation order.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings are process-wide user preferences.
type Settings struct {
	Theme           string     `json:"theme"`
	FontSize        int        `json:"fontSize"`
	ShowLineNumbers bool       `json:"showLineNumbers"`
	SyncStatus      SyncStatus `json:"syncStatus"`
}

// DefaultSettings is what a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		Theme:      "system",
		FontSize:   16,
		SyncStatus: SyncStatusSynced,
	}
}

// Apply merges a patch into the settings.
func (s *Settings) Apply(p SettingsPatch) {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.ShowLineNumbers != nil {
		s.ShowLineNumbers = *p.ShowLineNumbers
	}
	if p.SyncStatus != nil {
		s.SyncStatus = *p.SyncStatus
	}
}

// NoteInput describes a note to create. A non-empty ID is used verbatim by
// every backend.
type NoteInput struct {
	ID       string  `json:"id,omitempty" validate:"omitempty,max=128"`
	Title    string  `json:"title" validate:"max=1024"`
	Content  string  `json:"content"`
	FolderID *string `json:"folderId,omitempty" validate:"omitempty,max=128"`
	// CreatedAt and UpdatedAt are optional; migration uses them to carry
	// the original timestamps across backends.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	IsPinned  bool       `json:"isPinned,omitempty"`
	PinnedAt  *time.Time `json:"pinnedAt,omitempty"`
}

// InputOf converts a note into the input that recreates it elsewhere.
func InputOf(n Note) NoteInput {
	c := n.Clone()
	return NoteInput{
		ID:        c.ID,
		Title:     c.Title,
		Content:   c.Content,
		FolderID:  c.FolderID,
		CreatedAt: &c.CreatedAt,
		UpdatedAt: &c.UpdatedAt,
		IsPinned:  c.IsPinned,
		PinnedAt:  c.PinnedAt,
	}
}

// Build materialises the input into a Note, filling timestamps with now.
func (in NoteInput) Build(now time.Time) Note {
	n := Note{
		ID:        in.ID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.FolderID != nil {
		n.FolderID = FolderRef(*in.FolderID)
	}
	if in.CreatedAt != nil {
		n.CreatedAt = *in.CreatedAt
	}
	if in.UpdatedAt != nil {
		n.UpdatedAt = *in.UpdatedAt
	}
	if in.IsPinned {
		at := now
		if in.PinnedAt != nil {
			at = *in.PinnedAt
		}
		n.SetPinned(true, at)
	}
	return n
}

// NotePatch is a partial note update. Nil fields are left untouched.
// A FolderID pointing at "" moves the note to unfiled.
type NotePatch struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,max=1024"`
	Content  *string `json:"content,omitempty"`
	FolderID *string `json:"folderId,omitempty" validate:"omitempty,max=128"`
	IsPinned *bool   `json:"isPinned,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.FolderID == nil && p.IsPinned == nil
}

// FolderInput describes a folder to create; ID is passed through.
type FolderInput struct {
	ID   string `json:"id,omitempty" validate:"omitempty,max=128"`
	Name string `json:"name" validate:"required,max=256"`
}

// FolderPatch is a partial folder update.
type FolderPatch struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=256"`
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	Theme           *string     `json:"theme,omitempty"`
	FontSize        *int        `json:"fontSize,omitempty" validate:"omitempty,min=6,max=72"`
	ShowLineNumbers *bool       `json:"showLineNumbers,omitempty"`
	SyncStatus      *SyncStatus `json:"syncStatus,omitempty"`
}

// Version is a remote snapshot of a note's title and content.
type Version struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventType represents the kind of change observed in a backend.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event is emitted when a durable collection changes outside this process.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return string(e.Type) + " " + e.ID
}
