package main

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watch calls changed with the new contents of path whenever it is written
// by another program. The directory is watched so that editors that save by
// renaming a temporary file are seen too.
func watch(path string, log *zap.Logger, changed func(text string)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				b, err := os.ReadFile(path)
				if err != nil {
					log.Debug("reading changed file", zap.Error(err))
					continue
				}
				changed(string(b))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("watch", zap.Error(err))
			}
		}
	}()
	return func() {
		w.Close()
		<-done
	}, nil
}
