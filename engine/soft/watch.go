package soft

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/compositor"
)

// watcher reloads still images when their files are written or replaced.
// Directories are watched rather than files so that editors that save by
// rename keep triggering reloads.
type watcher struct {
	fs *fsnotify.Watcher

	mu     sync.Mutex
	stills map[string][]*still
	dirs   map[string]bool

	done chan struct{}
}

func newWatcher() (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		fs:     fs,
		stills: make(map[string][]*still),
		dirs:   make(map[string]bool),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *watcher) add(s *still) error {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	w.stills[abs] = append(w.stills[abs], s)
	return nil
}

func (w *watcher) run() {
	defer close(w.done)
	log := compositor.Logger()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			targets := append([]*still(nil), w.stills[abs]...)
			w.mu.Unlock()
			for _, s := range targets {
				// A partially written file fails to decode; the next write
				// event retries.
				if err := s.reload(); err != nil {
					log.Debug("soft: image reload failed", "path", s.path, "error", err)
					continue
				}
				log.Info("soft: image reloaded", "path", s.path)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn("soft: file watcher error", "error", err)
		}
	}
}

func (w *watcher) close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

// watchStill registers s for hot reload, creating the watcher on first use.
// Watch failures only disable reloading.
func (e *Engine) watchStill(s *still) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.watch == nil {
		w, err := newWatcher()
		if err != nil {
			e.mu.Unlock()
			compositor.Logger().Warn("soft: hot reload disabled", "error", err)
			return
		}
		e.watch = w
	}
	w := e.watch
	e.mu.Unlock()

	if err := w.add(s); err != nil {
		compositor.Logger().Warn("soft: cannot watch image", "path", s.path, "error", err)
	}
}
