// Package file stores chat history as one JSON document per corpus under
// <data dir>/chat_histories. Histories are kept apart from corpus
// directories so they survive rebuilds.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure MessageLog implements the interface.
var _ driven.MessageLog = (*MessageLog)(nil)

var log = logger.For("history")

// MessageLog is a file-backed chat history.
type MessageLog struct {
	dir   string
	locks sync.Map // corpus name -> *sync.Mutex
}

// New creates a message log in dir, creating it when needed. An empty dir
// defaults to ~/.ragpro/chat_histories.
func New(dir string) (*MessageLog, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".ragpro", "chat_histories")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &MessageLog{dir: dir}, nil
}

func (l *MessageLog) path(corpus string) string {
	return filepath.Join(l.dir, corpus+".json")
}

func (l *MessageLog) lock(corpus string) func() {
	mu, _ := l.locks.LoadOrStore(corpus, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Load returns the stored messages, oldest first. An unreadable history
// is moved aside and treated as empty.
func (l *MessageLog) Load(_ context.Context, corpus string) ([]domain.Message, error) {
	if err := domain.ValidateCorpusName(corpus); err != nil {
		return nil, err
	}
	defer l.lock(corpus)()
	return l.read(corpus)
}

func (l *MessageLog) read(corpus string) ([]domain.Message, error) {
	data, err := os.ReadFile(l.path(corpus))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", corpus, err)
	}

	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		aside := l.path(corpus) + ".corrupt"
		log.Warn("history of %s is unreadable (%v), moved to %s", corpus, err, aside)
		if renameErr := os.Rename(l.path(corpus), aside); renameErr != nil {
			return nil, fmt.Errorf("moving unreadable history aside: %w", renameErr)
		}
		return nil, nil
	}
	return msgs, nil
}

// Append adds messages and rewrites the file atomically.
func (l *MessageLog) Append(_ context.Context, corpus string, msgs ...domain.Message) error {
	if err := domain.ValidateCorpusName(corpus); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	defer l.lock(corpus)()

	existing, err := l.read(corpus)
	if err != nil {
		return err
	}
	return l.write(corpus, append(existing, msgs...))
}

// Clear removes the history of a corpus.
func (l *MessageLog) Clear(_ context.Context, corpus string) error {
	if err := domain.ValidateCorpusName(corpus); err != nil {
		return err
	}
	defer l.lock(corpus)()
	if err := os.Remove(l.path(corpus)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing history of %s: %w", corpus, err)
	}
	return nil
}

// Rename moves a history to a new corpus name. A missing history is not
// an error.
func (l *MessageLog) Rename(_ context.Context, oldName, newName string) error {
	if err := errors.Join(domain.ValidateCorpusName(oldName), domain.ValidateCorpusName(newName)); err != nil {
		return err
	}
	unlockOld := l.lock(oldName)
	defer unlockOld()
	if oldName != newName {
		defer l.lock(newName)()
	}

	err := os.Rename(l.path(oldName), l.path(newName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("renaming history of %s: %w", oldName, err)
	}
	return nil
}

func (l *MessageLog) write(corpus string, msgs []domain.Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, "."+corpus+".json.*")
	if err != nil {
		return fmt.Errorf("writing history of %s: %w", corpus, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing history of %s: %w", corpus, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing history of %s: %w", corpus, err)
	}
	return os.Rename(tmpName, l.path(corpus))
}
