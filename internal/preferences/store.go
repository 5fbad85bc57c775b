// Package preferences holds the two shared preference keys, the list of
// style configurations and the selected one. Every process reads and writes
// them through the same Backend and learns about changes made elsewhere from
// the change signal posted after each successful write.
package preferences

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/styles"
)

const (
	KeyConfigurations = "configurations"
	KeySelected       = "selected"
)

// ErrCorrupt marks a stored blob that could not be decoded. Getters log it
// and report the key as absent.
var ErrCorrupt = errors.New("corrupt preference data")

type selectedDocument struct {
	Selected *styles.Configuration `yaml:"selected"`
}

// Store reads and writes the shared preferences. The two keys are
// independent: nothing ties the selection to the list.
type Store struct {
	backend Backend
	poster  Poster
	logger  *logrus.Logger
}

// New returns a Store. poster may be nil when no other process needs to
// hear about writes.
func New(backend Backend, poster Poster, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Store{backend: backend, poster: poster, logger: logger}
}

// Configurations returns the stored list, or an empty list when the key is
// absent or unreadable.
func (s *Store) Configurations(ctx context.Context) []styles.Configuration {
	var list []styles.Configuration
	if !s.load(ctx, KeyConfigurations, &list) {
		return []styles.Configuration{}
	}
	if list == nil {
		list = []styles.Configuration{}
	}
	return list
}

// SetConfigurations replaces the stored list and posts the change signal.
// On failure nothing is persisted and no signal is posted.
func (s *Store) SetConfigurations(ctx context.Context, list []styles.Configuration) error {
	if list == nil {
		list = []styles.Configuration{}
	}
	return s.store(ctx, KeyConfigurations, list)
}

// Selected returns the stored selection. ok is false when nothing is
// selected or the key is unreadable.
func (s *Store) Selected(ctx context.Context) (styles.Configuration, bool) {
	var doc selectedDocument
	if !s.load(ctx, KeySelected, &doc) || doc.Selected == nil {
		return styles.Configuration{}, false
	}
	return *doc.Selected, true
}

// SetSelected stores c as the selection; nil clears it. The value is not
// checked against the configuration list.
func (s *Store) SetSelected(ctx context.Context, c *styles.Configuration) error {
	return s.store(ctx, KeySelected, selectedDocument{Selected: c})
}

// SeedDefaults writes list only if the configurations key has never been
// persisted. It reports whether it wrote anything. An explicitly emptied list
// is left alone.
func (s *Store) SeedDefaults(ctx context.Context, list []styles.Configuration) (bool, error) {
	_, err := s.backend.Read(ctx, KeyConfigurations)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, cache.ErrNotFound):
	default:
		return false, fmt.Errorf("read %s: %w", KeyConfigurations, err)
	}

	if err := s.SetConfigurations(ctx, list); err != nil {
		return false, err
	}
	s.logger.WithFields(logrus.Fields{
		"action": "preferences_seed",
		"count":  len(list),
	}).Info("preferences_seeded")
	return true, nil
}

func (s *Store) load(ctx context.Context, key string, out interface{}) bool {
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"action": "preferences_read",
				"key":    key,
			}).Warn("preferences_read_failed")
		}
		return false
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return false
		}
		s.logger.WithError(fmt.Errorf("%w: %v", ErrCorrupt, err)).WithFields(logrus.Fields{
			"action": "preferences_read",
			"key":    key,
		}).Warn("preferences_corrupt")
		return false
	}
	return true
}

func (s *Store) store(ctx context.Context, key string, value interface{}) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	if s.poster == nil {
		return nil
	}
	if err := s.poster.Post(); err != nil {
		// The value is persisted; other processes pick it up on their next read.
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action": "preferences_post",
			"key":    key,
		}).Warn("preferences_post_failed")
	}
	return nil
}
