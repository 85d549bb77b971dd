package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pkt.systems/framereel/schema"
)

// fakeSurface records every mutation so tests can assert the capture engine
// restores what it touched.
type fakeSurface struct {
	mu           sync.Mutex
	viewport     schema.Size
	scroll       schema.Point
	bounds       map[string]Rect
	excluded     []string
	fixed        []string
	hidden       map[string]bool
	translations map[string]schema.Point
	marker       *MarkerSpec
	markerPlaced int
	maskTargets  []MaskTarget
	masked       map[string]bool
	maskErr      map[string]error
	detached     map[string]bool
	replayed     []schema.Interaction
	html         string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		viewport:     schema.Size{Width: 800, Height: 600},
		bounds:       map[string]Rect{},
		hidden:       map[string]bool{},
		translations: map[string]schema.Point{},
		masked:       map[string]bool{},
		maskErr:      map[string]error{},
		detached:     map[string]bool{},
	}
}

func (s *fakeSurface) Viewport(ctx context.Context) (schema.Size, error) {
	return s.viewport, nil
}

func (s *fakeSurface) ScrollOffset(ctx context.Context) (schema.Point, error) {
	return s.scroll, nil
}

func (s *fakeSurface) NodeBounds(ctx context.Context, path string) (Rect, bool, error) {
	rect, ok := s.bounds[path]
	return rect, ok, nil
}

func (s *fakeSurface) ExcludedNodes(ctx context.Context) ([]string, error) {
	return s.excluded, nil
}

func (s *fakeSurface) SetNodeHidden(ctx context.Context, path string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[path] = hidden
	return nil
}

func (s *fakeSurface) FixedNodes(ctx context.Context) ([]string, error) {
	return s.fixed, nil
}

func (s *fakeSurface) SetNodeTranslation(ctx context.Context, path string, offset schema.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[path] = offset
	return nil
}

func (s *fakeSurface) PlaceMarker(ctx context.Context, spec MarkerSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	placed := spec
	s.marker = &placed
	s.markerPlaced++
	return nil
}

func (s *fakeSurface) RemoveMarker(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
	return nil
}

func (s *fakeSurface) MaskTargets(ctx context.Context) ([]MaskTarget, error) {
	return s.maskTargets, nil
}

func (s *fakeSurface) ApplyMask(ctx context.Context, path string) error {
	if err := s.maskErr[path]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masked[path] = true
	return nil
}

func (s *fakeSurface) RemoveMask(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached[path] {
		return false, nil
	}
	delete(s.masked, path)
	return true, nil
}

func (s *fakeSurface) ReplayInteraction(ctx context.Context, ic schema.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replayed = append(s.replayed, ic)
	return nil
}

func (s *fakeSurface) CaptureHTML(ctx context.Context) (string, error) {
	return s.html, nil
}

// fakeRenderer replays a scripted sequence of render outputs and repeats the
// last entry once the script is exhausted.
type fakeRenderer struct {
	mu      sync.Mutex
	script  [][]byte
	calls   int
	failErr error
}

func (r *fakeRenderer) Render(ctx context.Context, opts RenderOptions) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	idx := r.calls
	r.calls++
	if len(r.script) == 0 {
		return []byte(fmt.Sprintf("render-%d", idx)), nil
	}
	if idx >= len(r.script) {
		idx = len(r.script) - 1
	}
	return append([]byte(nil), r.script[idx]...), nil
}

// fakeClock advances time only through Sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []schema.RecorderEvent
}

func (s *fakeSink) OnRecorderEvent(event schema.RecorderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) byType(eventType schema.RecorderEventType) []schema.RecorderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.RecorderEvent
	for _, event := range s.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func newTestService(t interface {
	Fatalf(format string, args ...any)
	TempDir() string
}, cfg schema.ServiceConfig, deps ServiceDeps) *service {
	if deps.Surface == nil {
		deps.Surface = newFakeSurface()
	}
	if deps.Renderer == nil {
		deps.Renderer = &fakeRenderer{}
	}
	if deps.Clock == nil {
		deps.Clock = newFakeClock()
	}
	if cfg.StateDir == "" {
		cfg.StateDir = t.TempDir()
	}
	svc, err := NewService(cfg, deps)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}
