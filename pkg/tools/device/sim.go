package device

import (
	"context"
	"fmt"
	"sync"
)

// Sim is an in-memory Device used by the CLI demo mode and by tests. It
// records every action and serves canned screen content.
type Sim struct {
	mu      sync.Mutex
	actions []string

	// Screen is returned by ScreenContent.
	Screen string
	// Apps is returned by ListApps.
	Apps []string
}

func NewSim() *Sim {
	return &Sim{
		Screen: "Home screen",
		Apps:   []string{"com.android.settings", "com.android.chrome"},
	}
}

// Actions returns the recorded action log.
func (s *Sim) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Sim) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, fmt.Sprintf(format, args...))
}

func (s *Sim) Tap(ctx context.Context, x, y int) error {
	s.record("tap %d %d", x, y)
	return nil
}

func (s *Sim) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	s.record("swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs)
	return nil
}

func (s *Sim) TypeText(ctx context.Context, text string) error {
	s.record("type %s", text)
	return nil
}

func (s *Sim) PressKey(ctx context.Context, key string) error {
	s.record("press %s", key)
	return nil
}

func (s *Sim) ScreenContent(ctx context.Context) (string, error) {
	s.record("screen")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Screen, nil
}

func (s *Sim) OpenApp(ctx context.Context, pkg string) error {
	s.record("open %s", pkg)
	return nil
}

func (s *Sim) ListApps(ctx context.Context) ([]string, error) {
	s.record("apps")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Apps, nil
}
