package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/boypt/u2convert/lookup"
	"github.com/boypt/u2convert/storage"
	"github.com/fsnotify/fsnotify"
)

// Watch converts torrents that show up in the input directory until ctx is
// done. Events are collected until the directory has been quiet for the
// settle time and then converted as one run, so runs never overlap.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(e.config.InputDirectory); err != nil {
		return fmt.Errorf("watch %s: %w", e.config.InputDirectory, err)
	}
	log.Println("[watch] watching torrent files in", e.config.InputDirectory)
	if e.onWatch != nil {
		e.onWatch()
	}

	pending := map[string]struct{}{}
	settle := time.NewTimer(time.Hour)
	stopTimer(settle)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !storage.IsTorrent(ev.Name) {
				continue
			}
			pending[filepath.Base(ev.Name)] = struct{}{}
			stopTimer(settle)
			settle.Reset(e.settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Errorf("[watch] %v", err)
		case <-settle.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			pending = map[string]struct{}{}
			if err := e.convertNames(ctx, names); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) convertNames(ctx context.Context, names []string) error {
	var nodes []*storage.Node
	for _, name := range names {
		n, err := e.store.Stat(name)
		if err != nil {
			log.Warnf("[watch] %s: %v", name, err)
			continue
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return nil
	}
	sum, err := e.Convert(ctx, nodes)
	log.Println("[watch]", sum)
	switch {
	case errors.Is(err, lookup.ErrInvalidKey):
		return err
	case err != nil && ctx.Err() == nil:
		log.Errorf("[watch] %v", err)
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
