package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher ingests text files dropped into a directory. Enabled via the
// EnableFileWatcher feature toggle.
type Watcher struct {
	ingestor *Ingestor
	dir      string
	watcher  *fsnotify.Watcher
}

// NewWatcher builds a directory watcher over the ingestor.
func NewWatcher(ingestor *Ingestor, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{ingestor: ingestor, dir: dir, watcher: fw}, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	log.Infof("watching %s for documents", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.ingestFile(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != ".md" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warnf("failed to read %s", path)
		return
	}
	if _, err := w.ingestor.IngestText(ctx, filepath.Base(path), "text/plain", string(data), TypeDocument, ""); err != nil {
		log.WithError(err).Warnf("failed to ingest %s", path)
	}
}
