package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 350 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk and hands the
// result to a callback. Bursts of editor writes are coalesced.
type Watcher struct {
	path     string
	onChange func(Config)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// Watch starts watching path. The directory is watched rather than the file
// so atomic renames by editors are still seen.
func Watch(path string, onChange func(Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	cw := &Watcher{path: abs, onChange: onChange, watcher: w, done: make(chan struct{})}
	go cw.loop()
	return cw, nil
}

func (cw *Watcher) reload() {
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(cw.path); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	utils.Logger.Info("config file changed", "path", cw.path)
	cfg, err := ReadConfig(cw.path)
	if err != nil {
		utils.Logger.Error("failed to reload config", "path", cw.path, "err", err)
		return
	}
	cfg.ApplyDefaults()
	cw.onChange(cfg)
}

func (cw *Watcher) loop() {
	defer close(cw.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != cw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounceDelay, cw.reload)
			} else {
				timer.Reset(debounceDelay)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			utils.Logger.Warn("config watcher error", "err", err)
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (cw *Watcher) Close() error {
	var err error
	cw.once.Do(func() {
		err = cw.watcher.Close()
		<-cw.done
	})
	return err
}
