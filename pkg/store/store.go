// Package store owns the canonical conversation collection, its "current"
// pointer, and durable persistence: one JSON document per conversation,
// overwritten whole on every update so a concurrent reader of the directory
// always sees the latest state.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nstogner/pocketagent/pkg/agent"
)

// RecencyWindow bounds Recent: conversations started earlier than this are
// excluded entirely.
const RecencyWindow = time.Hour

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Manager is the sole writer of the conversation collection. Readers may
// call its accessors at any time: the manager keeps its own deep copies and
// hands out deep copies, so a conversation being appended to by the agent
// loop is never shared with an observer.
type Manager struct {
	dir string

	mu            sync.RWMutex
	conversations []*agent.Conversation
	currentID     string
	issued        map[string]int
	subs          []chan string
}

// NewManager opens the store over a directory, loading any previously
// persisted conversations.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	m := &Manager{dir: dir, issued: make(map[string]int)}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading store directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		var conv agent.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			// A malformed file should not brick the whole store.
			slog.Warn("Skipping unreadable conversation file", "file", e.Name(), "error", err)
			continue
		}
		m.conversations = append(m.conversations, &conv)
	}
	sort.SliceStable(m.conversations, func(i, j int) bool {
		return m.conversations[i].StartTime < m.conversations[j].StartTime
	})
	return nil
}

// Update upserts a conversation by id, keeping its position when it already
// exists, makes it current, and persists it synchronously to its backing
// file. The manager stores its own copy; the caller keeps mutating its
// working copy freely afterward.
func (m *Manager) Update(conv *agent.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.persist(conv); err != nil {
		return err
	}

	stored := conv.Clone()
	replaced := false
	for i, c := range m.conversations {
		if c.ID == conv.ID {
			m.conversations[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		m.conversations = append(m.conversations, stored)
	}
	m.currentID = conv.ID

	m.notify(conv.ID)
	return nil
}

func (m *Manager) persist(conv *agent.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", conv.ID, err)
	}
	path := filepath.Join(m.dir, conv.FileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing conversation %s: %w", conv.ID, err)
	}
	return nil
}

// SetCurrent switches the current pointer. Unknown ids are a no-op, never
// an error.
func (m *Manager) SetCurrent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.ID == id {
			m.currentID = id
			return
		}
	}
}

// Current returns a copy of the current conversation, or nil when none is
// set.
func (m *Manager) Current() *agent.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.find(m.currentID); c != nil {
		return c.Clone()
	}
	return nil
}

// Get returns a copy of the conversation with the given id, or nil.
func (m *Manager) Get(id string) *agent.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.find(id); c != nil {
		return c.Clone()
	}
	return nil
}

func (m *Manager) find(id string) *agent.Conversation {
	if id == "" {
		return nil
	}
	for _, c := range m.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// List returns copies of the collection in insertion order.
func (m *Manager) List() []*agent.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*agent.Conversation, len(m.conversations))
	for i, c := range m.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Delete removes a conversation and its backing file. Deleting the current
// conversation leaves the current pointer empty.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.conversations {
		if c.ID != id {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, c.FileName)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing conversation file: %w", err)
		}
		m.conversations = append(m.conversations[:i], m.conversations[i+1:]...)
		if m.currentID == id {
			m.currentID = ""
		}
		m.notify(id)
		return nil
	}
	return nil
}

// Clear removes every conversation and backing file.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.conversations {
		if err := os.Remove(filepath.Join(m.dir, c.FileName)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing conversation file: %w", err)
		}
	}
	m.conversations = nil
	m.currentID = ""
	m.notify("")
	return nil
}

// Recent returns conversations started within the recency window, most
// recent first. Older conversations are excluded, not truncated.
func (m *Manager) Recent() []*agent.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-RecencyWindow).UnixMilli()
	var out []*agent.Conversation
	for _, c := range m.conversations {
		if c.StartTime >= cutoff {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime > out[j].StartTime
	})
	return out
}

// FileNameFor derives a unique storage file name from a title: lower-cased,
// everything outside [a-z0-9] replaced with underscores, truncated to 50
// characters, and prefixed with a zero-padded counter so repeated titles
// get distinct files.
func (m *Manager) FileNameFor(title string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	stem := nonAlnum.ReplaceAllString(strings.ToLower(title), "_")
	if len(stem) > 50 {
		stem = stem[:50]
	}

	n := m.countFiles(stem)
	if issued := m.issued[stem]; issued > n {
		n = issued
	}
	m.issued[stem] = n + 1

	return fmt.Sprintf("%04d-%s.json", n, stem)
}

func (m *Manager) countFiles(stem string) int {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "-"+stem+".json") {
			n++
		}
	}
	return n
}

// Subscribe returns a channel emitting conversation ids whenever the
// collection changes, plus an unsubscribe func that closes the channel and
// stops further deliveries. Slow subscribers miss events rather than block
// a writer.
func (m *Manager) Subscribe() (<-chan string, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan string, 16)
	m.subs = append(m.subs, ch)

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

func (m *Manager) notify(id string) {
	for _, ch := range m.subs {
		select {
		case ch <- id:
		default:
		}
	}
}
