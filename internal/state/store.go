// Package state persists the application state in the local key-value store.
package state

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/db"
	"github.com/hpungsan/mapreview/internal/review"
)

// StorageKey is the single kv slot holding the state document.
const StorageKey = "maps-reviewer-state-v1"

// Store loads and saves review.AppState.
type Store struct {
	db     *sql.DB
	goos   string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a store. goos selects the platform settings defaults.
func NewStore(database *sql.DB, goos string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: database, goos: goos, logger: logger, now: time.Now}
}

// Load returns the persisted state, or a fresh state when nothing usable is
// stored. It never fails; faults are logged.
func (s *Store) Load(ctx context.Context) *review.AppState {
	raw, ok, err := db.Get(ctx, s.db, StorageKey)
	if err != nil {
		s.logger.Warn("state load failed, using defaults", zap.Error(err))
		return review.FreshState(s.goos)
	}
	if !ok {
		return review.FreshState(s.goos)
	}

	st, err := Decode([]byte(raw), s.goos)
	if err != nil {
		s.logger.Warn("stored state unreadable, using defaults", zap.Error(err))
		return review.FreshState(s.goos)
	}
	return st
}

// Save writes the whole state document.
func (s *Store) Save(ctx context.Context, st *review.AppState) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	return db.Put(ctx, s.db, StorageKey, string(data), s.now())
}

// Encode serializes st stamped with the current state version.
func Encode(st *review.AppState) ([]byte, error) {
	out := *st
	out.StateVersion = review.CurrentStateVersion
	if out.AppVersion == "" {
		out.AppVersion = review.AppVersion
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses a stored state document of any known version.
// Settings are overlaid onto the platform defaults so nested groups missing
// from older documents are back-filled field by field.
func Decode(data []byte, goos string) (*review.AppState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse state: document is not an object")
	}
	if items, has := doc["items"]; has && items != nil {
		if _, ok := items.([]any); !ok {
			return nil, fmt.Errorf("parse state: items is not an array")
		}
	}

	doc = migrate(doc)

	migrated, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode state: %w", err)
	}

	st := &review.AppState{Settings: review.DefaultSettings(goos)}
	if err := json.Unmarshal(migrated, st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	st.StateVersion = review.CurrentStateVersion
	if st.AppVersion == "" {
		st.AppVersion = review.AppVersion
	}
	if !st.Settings.CommandMode.Valid() {
		st.Settings.CommandMode = review.DefaultSettings(goos).CommandMode
	}
	if st.Items == nil {
		st.Items = []review.Item{}
	}
	for i := range st.Items {
		st.Items[i].Reconcile()
	}
	if st.SelectedID != nil && st.FindItem(*st.SelectedID) < 0 {
		st.SelectedID = nil
	}
	return st, nil
}
