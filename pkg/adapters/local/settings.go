package local

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// LoadSettings reads the settings record, falling back to defaults when
// none was ever written. Every backend keeps settings here, so this record
// is also the local mirror the router maintains.
func LoadSettings(store kv.Store) (core.Settings, error) {
	settings := core.DefaultSettings()
	if err := readJSON(store, KeySettings, &settings); err != nil {
		return core.Settings{}, err
	}
	return settings, nil
}

// SaveSettings merges patch into the stored settings and writes them back.
func SaveSettings(store kv.Store, patch core.SettingsPatch) (core.Settings, error) {
	settings, err := LoadSettings(store)
	if err != nil {
		return core.Settings{}, err
	}
	settings.Apply(patch)
	if err := writeJSON(store, KeySettings, settings); err != nil {
		return core.Settings{}, err
	}
	return settings, nil
}

func readJSON(store kv.Store, key string, out any) error {
	raw, ok, err := store.Get(key)
	if err != nil {
		return core.Wrap(core.ErrStorage, "read "+key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return core.Wrap(core.ErrStorage, "decode "+key, err)
	}
	return nil
}

func writeJSON(store kv.Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.Wrap(core.ErrStorage, "encode "+key, fmt.Errorf("marshal: %w", err))
	}
	if err := store.Set(key, string(data)); err != nil {
		return core.Wrap(core.ErrStorage, "write "+key, err)
	}
	return nil
}
