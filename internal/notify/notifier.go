// Package notify broadcasts a payload-free "preferences changed" signal to
// every cooperating process on the machine. The signal is a well-known file
// under the state directory: posting rewrites it, and every process watching
// the directory with fsnotify, the poster included, sees the write.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultName is the signal file name used for preference changes.
	DefaultName = "preferences-changed"

	defaultDebounce = 50 * time.Millisecond
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("notifier closed")

// Options configures a Notifier.
type Options struct {
	// Dir holds the signal file. Every process sharing a state directory must
	// use the same Dir.
	Dir string
	// Name is the signal file name; DefaultName when empty.
	Name string
	// Debounce is the quiet window used to coalesce filesystem events.
	Debounce time.Duration
	Logger   *logrus.Logger
}

// Notifier posts and observes the change signal.
type Notifier struct {
	dir    string
	path   string
	window time.Duration
	logger *logrus.Logger

	mu        sync.Mutex
	subs      []*subscription
	started   bool
	closed    bool
	watcher   *fsnotify.Watcher
	debouncer *Debouncer

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

type subscription struct {
	fn     func()
	mu     sync.Mutex
	active atomic.Bool
	once   sync.Once
}

// New returns a Notifier. Post works immediately; Start must be called before
// subscribers receive anything.
func New(opts Options) (*Notifier, error) {
	if opts.Dir == "" {
		return nil, errors.New("notify directory required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve notify directory: %w", err)
	}
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	window := opts.Debounce
	if window <= 0 {
		window = defaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Notifier{
		dir:    dir,
		path:   filepath.Join(dir, name),
		window: window,
		logger: logger,
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// Path returns the signal file.
func (n *Notifier) Path() string {
	return n.path
}

// Post broadcasts the change signal.
func (n *Notifier) Post() error {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return fmt.Errorf("create notify directory: %w", err)
	}
	if err := os.WriteFile(n.path, []byte(uuid.NewString()+"\n"), 0o644); err != nil {
		return fmt.Errorf("post change signal: %w", err)
	}
	return nil
}

// Start begins watching for the signal. It returns once the watch is in
// place; delivery stops when ctx is done or Close is called.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if n.started {
		return nil
	}

	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return fmt.Errorf("create notify directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(n.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", n.dir, err)
	}

	n.watcher = watcher
	n.debouncer = NewDebouncer(n.window, n.signal)
	n.started = true

	n.wg.Add(2)
	go n.processEvents(ctx)
	go n.dispatchLoop(ctx)
	return nil
}

// Subscribe registers fn to run after every observed signal. Callbacks run
// one at a time on the notifier's dispatch goroutine.
//
// fn receives its own stop func, which may be called from inside fn: fn is
// not started again and the running invocation finishes normally. The
// returned unsubscribe func is for other goroutines: once it returns, fn is
// not running and will not start again. Calling it from inside fn deadlocks.
func (n *Notifier) Subscribe(fn func(stop func())) (unsubscribe func()) {
	sub := &subscription{}
	sub.active.Store(true)
	stop := func() { n.remove(sub) }
	sub.fn = func() { fn(stop) }

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	return func() {
		n.remove(sub)
		// Wait out an invocation that may have started already.
		sub.mu.Lock()
		sub.mu.Unlock()
	}
}

func (n *Notifier) remove(sub *subscription) {
	sub.once.Do(func() {
		sub.active.Store(false)

		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s == sub {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	})
}

// Close stops watching and waits for the dispatch goroutine. It must not be
// called from inside a subscriber.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	started := n.started
	watcher := n.watcher
	debouncer := n.debouncer
	n.mu.Unlock()

	close(n.done)
	if !started {
		return nil
	}
	debouncer.Stop()
	err := watcher.Close()
	n.wg.Wait()
	return err
}

func (n *Notifier) processEvents(ctx context.Context) {
	defer n.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != n.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			n.debouncer.Trigger()
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.WithError(err).WithField("action", "notify_watch").Warn("notify_watch_error")
		}
	}
}

// signal runs on the debouncer's timer goroutine and hands off to the
// dispatcher without blocking.
func (n *Notifier) signal() {
	select {
	case n.kick <- struct{}{}:
	default:
	}
}

func (n *Notifier) dispatchLoop(ctx context.Context) {
	defer n.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-n.kick:
			n.dispatch()
		}
	}
}

func (n *Notifier) dispatch() {
	n.mu.Lock()
	subs := make([]*subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, sub := range subs {
		n.invoke(sub)
	}
}

func (n *Notifier) invoke(sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.active.Load() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.WithFields(logrus.Fields{
				"action": "notify_dispatch",
				"panic":  fmt.Sprint(r),
			}).Error("notify_subscriber_panic")
		}
	}()
	sub.fn()
}
