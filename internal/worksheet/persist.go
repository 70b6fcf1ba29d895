package worksheet

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/johan-st/dbstudio/internal/storage"
)

// Load restores the registry persisted in store and keeps it saved there after
// every mutation. With nothing persisted it starts with a default worksheet.
func Load(store storage.Storage, logger *log.Logger, opts ...Option) (*Registry, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	saver := func(st State) {
		if err := Save(store, st); err != nil {
			logger.Warn("failed to persist worksheets", "err", err)
		}
	}
	opts = append(opts, WithSaveHook(saver))

	raw, ok, err := store.Get(storage.KeyAppState)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet state: %w", err)
	}
	if !ok {
		return NewRegistry(opts...), nil
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		logger.Warn("discarding unreadable worksheet state", "err", err)
		return NewRegistry(opts...), nil
	}

	r := Restore(st, opts...)
	logger.Debug("restored worksheets", "count", len(st.Worksheets), "open", len(r.openIDs), "active", r.activeID)
	return r, nil
}

// Save writes st to store.
func Save(store storage.Storage, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode worksheet state: %w", err)
	}
	return store.Set(storage.KeyAppState, string(data))
}

// Restore builds a registry from st, dropping open ids that name no worksheet,
// duplicate worksheet ids and an active id that is not open.
func Restore(st State, opts ...Option) *Registry {
	r := newEmpty(opts...)

	for i := range st.Worksheets {
		ws := st.Worksheets[i]
		if ws.ID == "" || r.findLocked(ws.ID) != nil {
			continue
		}
		r.worksheets = append(r.worksheets, &ws)
	}
	for _, id := range st.OpenIDs {
		if r.findLocked(id) != nil && indexOf(r.openIDs, id) < 0 {
			r.openIDs = append(r.openIDs, id)
		}
	}
	if indexOf(r.openIDs, st.ActiveID) >= 0 {
		r.activeID = st.ActiveID
	} else if len(r.openIDs) > 0 {
		r.activeID = r.openIDs[0]
	}
	return r
}
