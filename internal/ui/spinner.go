// Package ui draws CLI progress on the terminal.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var frames = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

const frameInterval = 80 * time.Millisecond

// Spinner animates a one-line status on w, usually stderr.
type Spinner struct {
	w    io.Writer
	mu   sync.Mutex
	msg  string
	done chan struct{}
	wg   sync.WaitGroup
}

func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// Start begins the animation. Starting a running spinner only changes the
// message.
func (s *Spinner) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = msg
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.done)
}

func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. The last frame is written
// before Stop returns.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	s.wg.Wait()
	fmt.Fprint(s.w, "\r\033[K")
}

func (s *Spinner) run(done <-chan struct{}) {
	defer s.wg.Done()
	tick := time.NewTicker(frameInterval)
	defer tick.Stop()

	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-tick.C:
			s.mu.Lock()
			msg := s.msg
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r\033[K%c %s", frames[i%len(frames)], msg)
		}
	}
}

// MerchantTracker turns per-merchant progress into a spinner message like
// "[2/7] walmart: rendering".
type MerchantTracker struct {
	spin     *Spinner
	mu       sync.Mutex
	total    int
	finished int
}

func NewMerchantTracker(spin *Spinner, total int) *MerchantTracker {
	return &MerchantTracker{spin: spin, total: total}
}

// Report records that merchant reached stage. Terminal stages count
// towards the finished total.
func (t *MerchantTracker) Report(merchant, stage string, terminal bool) {
	t.mu.Lock()
	if terminal {
		t.finished++
	}
	msg := fmt.Sprintf("[%d/%d] %s: %s", t.finished, t.total, merchant, stage)
	t.mu.Unlock()
	t.spin.Update(msg)
}
