package worksheet

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds all worksheets, the open tab sequence and the active tab.
//
// Operations on an unknown id leave the registry unchanged and return false.
type Registry struct {
	worksheets []*Worksheet
	openIDs    []string
	activeID   string

	now    func() time.Time
	newID  func() string
	onSave func(State)
	mu     sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used for default names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator sets the id source for worksheets created without an id.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithSaveHook registers fn to receive the state after every mutation.
func WithSaveHook(fn func(State)) Option {
	return func(r *Registry) { r.onSave = fn }
}

// NewRegistry creates a registry holding a single open, active default worksheet.
func NewRegistry(opts ...Option) *Registry {
	r := newEmpty(opts...)
	r.addLocked(Partial{})
	return r
}

func newEmpty(opts ...Option) *Registry {
	r := &Registry{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add creates a worksheet, opens it and makes it active.
// If p.ID names an existing worksheet, that worksheet is opened and activated instead.
func (r *Registry) Add(p Partial) Worksheet {
	r.mu.Lock()
	if existing := r.findLocked(p.ID); p.ID != "" && existing != nil {
		r.openLocked(existing.ID)
		r.activeID = existing.ID
		ws := *existing
		r.mu.Unlock()
		r.save()
		return ws
	}
	ws := r.addLocked(p)
	r.mu.Unlock()
	r.save()
	return ws
}

func (r *Registry) addLocked(p Partial) Worksheet {
	now := r.now()
	id := p.ID
	if id == "" {
		id = r.uniqueIDLocked()
	}
	name := p.Name
	if name == "" {
		name = defaultName(now)
	}

	ws := &Worksheet{
		ID:           id,
		Name:         name,
		Content:      p.Content,
		ConnectionID: p.ConnectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.worksheets = append(r.worksheets, ws)
	r.openIDs = append(r.openIDs, id)
	r.activeID = id
	return *ws
}

func (r *Registry) uniqueIDLocked() string {
	for {
		id := r.newID()
		if r.findLocked(id) == nil {
			return id
		}
	}
}

// Close removes id from the open tabs. The worksheet itself is kept.
//
// Closing the active tab activates the tab now at the same position, else the
// last tab, else nothing.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	idx := indexOf(r.openIDs, id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}

	r.openIDs = remove(r.openIDs, idx)
	if r.activeID == id {
		switch {
		case idx < len(r.openIDs):
			r.activeID = r.openIDs[idx]
		case len(r.openIDs) > 0:
			r.activeID = r.openIDs[len(r.openIDs)-1]
		default:
			r.activeID = ""
		}
	}
	r.mu.Unlock()
	r.save()
	return true
}

// Delete permanently removes the worksheet. A deleted active tab hands focus
// to the first remaining open tab.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	pos := r.positionLocked(id)
	if pos < 0 {
		r.mu.Unlock()
		return false
	}

	r.worksheets = append(r.worksheets[:pos:pos], r.worksheets[pos+1:]...)
	if idx := indexOf(r.openIDs, id); idx >= 0 {
		r.openIDs = remove(r.openIDs, idx)
	}
	if r.activeID == id {
		r.activeID = ""
		if len(r.openIDs) > 0 {
			r.activeID = r.openIDs[0]
		}
	}
	r.mu.Unlock()
	r.save()
	return true
}

// UpdateContent replaces the worksheet's text.
func (r *Registry) UpdateContent(id, content string) bool {
	return r.mutate(id, func(ws *Worksheet) { ws.Content = content })
}

// Rename sets the worksheet's display name.
func (r *Registry) Rename(id, name string) bool {
	return r.mutate(id, func(ws *Worksheet) { ws.Name = name })
}

// SetConnection points the worksheet at a data source.
func (r *Registry) SetConnection(id, connectionID string) bool {
	return r.mutate(id, func(ws *Worksheet) { ws.ConnectionID = connectionID })
}

func (r *Registry) mutate(id string, fn func(*Worksheet)) bool {
	r.mu.Lock()
	ws := r.findLocked(id)
	if ws == nil {
		r.mu.Unlock()
		return false
	}
	fn(ws)
	ws.UpdatedAt = r.now()
	r.mu.Unlock()
	r.save()
	return true
}

// SetActive focuses id, opening it first if needed.
func (r *Registry) SetActive(id string) bool {
	r.mu.Lock()
	if r.findLocked(id) == nil {
		r.mu.Unlock()
		return false
	}
	r.openLocked(id)
	r.activeID = id
	r.mu.Unlock()
	r.save()
	return true
}

func (r *Registry) openLocked(id string) {
	if indexOf(r.openIDs, id) < 0 {
		r.openIDs = append(r.openIDs, id)
	}
}

// Duplicate copies the worksheet into a new, open and active worksheet.
func (r *Registry) Duplicate(id string) (Worksheet, bool) {
	r.mu.Lock()
	src := r.findLocked(id)
	if src == nil {
		r.mu.Unlock()
		return Worksheet{}, false
	}
	ws := r.addLocked(Partial{
		Name:         src.Name + CopySuffix,
		Content:      src.Content,
		ConnectionID: src.ConnectionID,
	})
	r.mu.Unlock()
	r.save()
	return ws, true
}

// Reorder moves sourceID to the position targetID currently holds.
// Open tabs and the active tab are not affected.
func (r *Registry) Reorder(sourceID, targetID string) bool {
	r.mu.Lock()
	from := r.positionLocked(sourceID)
	to := r.positionLocked(targetID)
	if from < 0 || to < 0 {
		r.mu.Unlock()
		return false
	}
	if from != to {
		ws := r.worksheets[from]
		r.worksheets = append(r.worksheets[:from:from], r.worksheets[from+1:]...)
		r.worksheets = append(r.worksheets[:to], append([]*Worksheet{ws}, r.worksheets[to:]...)...)
	}
	r.mu.Unlock()
	r.save()
	return true
}

// Get returns a copy of the worksheet.
func (r *Registry) Get(id string) (Worksheet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ws := r.findLocked(id); ws != nil {
		return *ws, true
	}
	return Worksheet{}, false
}

// List returns all worksheets in collection order.
func (r *Registry) List() []Worksheet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Worksheet, len(r.worksheets))
	for i, ws := range r.worksheets {
		out[i] = *ws
	}
	return out
}

// Open returns the open worksheets in tab order.
func (r *Registry) Open() []Worksheet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Worksheet, 0, len(r.openIDs))
	for _, id := range r.openIDs {
		if ws := r.findLocked(id); ws != nil {
			out = append(out, *ws)
		}
	}
	return out
}

// OpenIDs returns the open tab ids in order.
func (r *Registry) OpenIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.openIDs...)
}

// ActiveID returns the focused worksheet id, or "" when no tab is open.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Active returns the focused worksheet.
func (r *Registry) Active() (Worksheet, bool) {
	return r.Get(r.ActiveID())
}

// Snapshot returns a copy of the full registry state.
func (r *Registry) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() State {
	st := State{
		Worksheets: make([]Worksheet, len(r.worksheets)),
		OpenIDs:    append([]string{}, r.openIDs...),
		ActiveID:   r.activeID,
	}
	for i, ws := range r.worksheets {
		st.Worksheets[i] = *ws
	}
	return st
}

func (r *Registry) findLocked(id string) *Worksheet {
	if pos := r.positionLocked(id); pos >= 0 {
		return r.worksheets[pos]
	}
	return nil
}

func (r *Registry) positionLocked(id string) int {
	for i, ws := range r.worksheets {
		if ws.ID == id {
			return i
		}
	}
	return -1
}

// save hands the current state to the save hook, outside the lock.
func (r *Registry) save() {
	if r.onSave == nil {
		return
	}
	r.onSave(r.Snapshot())
}
