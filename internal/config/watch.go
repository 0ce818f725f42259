package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pentops/log.go/log"
)

const reloadDelay = 200 * time.Millisecond

// Watch reloads the settings file whenever it changes and passes the result
// to onChange. Files which fail to load are logged and skipped. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, onChange func(context.Context, *Settings)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}

	// The directory is watched so that editors which replace the file on
	// save are still seen.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	ctx = log.WithField(ctx, "settings", path)

	reload := newDebounce(reloadDelay, func(ctx context.Context, path string) {
		settings, err := Load(path)
		if err != nil {
			log.WithError(ctx, err).Error("Settings not reloaded")
			return
		}
		log.Debug(ctx, "Settings reloaded")
		onChange(ctx, settings)
	})
	defer reload.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			reload.request(ctx, path)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(ctx, err).Warn("settings watcher error")
		}
	}
}
