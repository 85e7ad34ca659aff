package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "shortscraper/pkg/errors"
)

var (
	// ErrSessionClosed is returned by every FakeSession call after Close
	ErrSessionClosed = errors.New("session closed")
	// ErrEndOfFeed is returned when a fake session is asked to advance past its last page
	ErrEndOfFeed = errors.New("end of feed")
	// ErrNotVisible is returned when a selector matches nothing on the current fake page
	ErrNotVisible = errors.New("element not visible")
)

// FakePage is one scripted document in a fake feed
type FakePage struct {
	URL  string
	HTML string
}

// FakeScript drives a FakeSession. Clicking any element that is, or sits
// inside, a <button> advances to the next page, as does any key press.
type FakeScript struct {
	Pages []FakePage

	// AdvanceLimit caps successful advances; 0 means the page list is the only limit
	AdvanceLimit int

	// Error injection
	NavigateErr error
	ClickErr    error
	KeyErr      error
	HTMLErr     error
}

// FakeFactory implements Factory with scripted in-memory sessions
type FakeFactory struct {
	mu         sync.Mutex
	defaults   FakeScript
	scripts    map[string]FakeScript
	acquireErr map[string]error
	sessions   map[string]*FakeSession
	specs      []Spec

	acquired atomic.Int32
}

// NewFakeFactory creates a factory that hands every worker a session running def
func NewFakeFactory(def FakeScript) *FakeFactory {
	return &FakeFactory{
		defaults:   def,
		scripts:    make(map[string]FakeScript),
		acquireErr: make(map[string]error),
		sessions:   make(map[string]*FakeSession),
	}
}

// Script overrides the script for one worker
func (f *FakeFactory) Script(workerID string, script FakeScript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[workerID] = script
}

// FailAcquire makes Acquire fail for one worker
func (f *FakeFactory) FailAcquire(workerID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireErr[workerID] = err
}

func (f *FakeFactory) Acquire(ctx context.Context, spec Spec) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.DriverInit(spec.WorkerID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.specs = append(f.specs, spec)
	if err, ok := f.acquireErr[spec.WorkerID]; ok {
		return nil, errs.DriverInit(spec.WorkerID, err)
	}

	script, ok := f.scripts[spec.WorkerID]
	if !ok {
		script = f.defaults
	}
	sess := NewFakeSession(script)
	f.sessions[spec.WorkerID] = sess
	f.acquired.Add(1)
	return sess, nil
}

// Session returns the last session handed to workerID, or nil
func (f *FakeFactory) Session(workerID string) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[workerID]
}

// Specs returns every spec Acquire was called with, in call order
func (f *FakeFactory) Specs() []Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Spec(nil), f.specs...)
}

// Acquired counts successful acquisitions
func (f *FakeFactory) Acquired() int {
	return int(f.acquired.Load())
}

// FakeSession is a Session over a scripted page list
type FakeSession struct {
	mu       sync.Mutex
	script   FakeScript
	index    int
	advances int
	closed   bool
	visited  []string

	Navigations atomic.Int32
	Clicks      atomic.Int32
	KeyPresses  atomic.Int32
	Closes      atomic.Int32
}

// NewFakeSession creates a session positioned on the first page of script
func NewFakeSession(script FakeScript) *FakeSession {
	pages := append([]FakePage(nil), script.Pages...)
	script.Pages = pages
	return &FakeSession{script: script}
}

func (s *FakeSession) Navigate(ctx context.Context, url string) error {
	s.Navigations.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.script.NavigateErr != nil {
		return s.script.NavigateErr
	}
	s.visited = append(s.visited, url)
	for i, p := range s.script.Pages {
		if p.URL == url {
			s.index = i
			break
		}
	}
	return nil
}

func (s *FakeSession) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	page, ok := s.current()
	if !ok {
		return "about:blank", nil
	}
	return page.URL, nil
}

func (s *FakeSession) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	if s.script.HTMLErr != nil {
		return "", s.script.HTMLErr
	}
	page, ok := s.current()
	if !ok {
		return "<html><body></body></html>", nil
	}
	return page.HTML, nil
}

func (s *FakeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.find(selector); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (s *FakeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	s.Clicks.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.script.ClickErr != nil {
		return s.script.ClickErr
	}
	sel, err := s.find(selector)
	if err != nil {
		return err
	}
	if sel.Is("button") || sel.Closest("button").Length() > 0 {
		return s.advance()
	}
	return nil
}

func (s *FakeSession) PressKey(ctx context.Context, key string) error {
	s.KeyPresses.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.script.KeyErr != nil {
		return s.script.KeyErr
	}
	return s.advance()
}

func (s *FakeSession) Close() error {
	s.Closes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Visited returns every URL passed to Navigate
func (s *FakeSession) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Advances counts successful moves to a following page
func (s *FakeSession) Advances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advances
}

func (s *FakeSession) check(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	return ctx.Err()
}

func (s *FakeSession) current() (FakePage, bool) {
	if s.index < 0 || s.index >= len(s.script.Pages) {
		return FakePage{}, false
	}
	return s.script.Pages[s.index], true
}

func (s *FakeSession) find(selector string) (*goquery.Selection, error) {
	page, ok := s.current()
	if !ok {
		return nil, ErrNotVisible
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotVisible)
	}
	return sel, nil
}

func (s *FakeSession) advance() error {
	if s.script.AdvanceLimit > 0 && s.advances >= s.script.AdvanceLimit {
		return ErrEndOfFeed
	}
	if s.index+1 >= len(s.script.Pages) {
		return ErrEndOfFeed
	}
	s.index++
	s.advances++
	return nil
}
