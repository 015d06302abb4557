package server

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// reloader watches source and template files and bumps an epoch counter on
// every relevant change. Open preview pages poll the epoch and reload when it
// advances.
type reloader struct {
	template string
	epoch    int64
	watcher  *fsnotify.Watcher
}

func newReloader(template string) *reloader {
	return &reloader{template: template}
}

func (r *reloader) Epoch() int64 {
	return atomic.LoadInt64(&r.epoch)
}

func (r *reloader) bump() {
	atomic.AddInt64(&r.epoch, 1)
}

// watch recursively registers the directories under root and consumes change
// events until the watcher is closed. It blocks, so run it in a goroutine.
func (r *reloader) watch(root string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	r.watcher = w

	err = r.addDirs(root)
	if err != nil {
		w.Close()
		return err
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 && dirExists(event.Name) {
				// new directories need their own watch
				if err := r.addDirs(event.Name); err != nil {
					log.Errorf("template watcher: %v", err)
				}
				continue
			}
			if r.relevant(event.Name) {
				log.Debugf("%s changed, reloading preview pages", event.Name)
				r.bump()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Errorf("template watcher: %v", err)
		}
	}
}

func (r *reloader) stop() {
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// relevant reports whether a change to the named file should refresh open
// preview pages: the template file itself, any html, or any module source.
func (r *reloader) relevant(name string) bool {
	base := path.Base(name)
	if base == r.template || strings.HasSuffix(base, ".html") || strings.HasSuffix(base, ".css") {
		return true
	}
	for _, ext := range defaultModuleExts {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

func (r *reloader) addDirs(root string) error {
	return filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		name := fi.Name()
		if p != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
			return filepath.SkipDir
		}
		return r.watcher.Add(p)
	})
}
