// Package file provides a file-backed implementation of the session.Store
// interface: one JSON entry for the credential bundle and a companion
// entry recording the last refresh time, both under a namespaced prefix
// in a configurable directory. Writes go through a temp file and rename
// so a crashed write never leaves a truncated bundle behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

const (
	// DefaultPrefix namespaces the storage entries.
	DefaultPrefix = "threatalytics"

	tokensSuffix = "_tokens"
	timeSuffix   = "_token_time"
)

// Config holds file store configuration.
type Config struct {
	// Dir is the directory holding the storage entries. Required.
	Dir string

	// Prefix namespaces the entry filenames (default: DefaultPrefix).
	Prefix string

	// Mode is the permission bits for created files (default: 0600).
	Mode os.FileMode
}

// Store implements session.Store using files on disk.
type Store struct {
	tokensPath string
	timePath   string
	mode       os.FileMode
}

// New creates a new file-backed credential store, creating the directory
// if it does not exist.
func New(config Config) (*Store, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Mode == 0 {
		config.Mode = 0o600
	}

	if err := os.MkdirAll(config.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &Store{
		tokensPath: filepath.Join(config.Dir, config.Prefix+tokensSuffix),
		timePath:   filepath.Join(config.Dir, config.Prefix+timeSuffix),
		mode:       config.Mode,
	}, nil
}

// Read implements session.Store.
func (s *Store) Read(ctx context.Context) (session.Bundle, error) {
	data, err := os.ReadFile(s.tokensPath)
	if err != nil {
		if os.IsNotExist(err) {
			return session.Bundle{}, nil
		}
		return session.Bundle{}, fmt.Errorf("read credentials: %w", err)
	}

	var bundle session.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return session.Bundle{}, fmt.Errorf("decode credentials: %w", err)
	}
	return bundle, nil
}

// Write implements session.Store.
func (s *Store) Write(ctx context.Context, bundle session.Bundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.writeAtomic(s.tokensPath, data)
}

// Clear implements session.Store.
func (s *Store) Clear(ctx context.Context) error {
	for _, path := range []string{s.tokensPath, s.timePath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ReadRefreshTime implements session.Store.
func (s *Store) ReadRefreshTime(ctx context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.timePath)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("read refresh time: %w", err)
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode refresh time: %w", err)
	}
	return time.UnixMilli(millis), nil
}

// WriteRefreshTime implements session.Store.
func (s *Store) WriteRefreshTime(ctx context.Context, t time.Time) error {
	return s.writeAtomic(s.timePath, []byte(strconv.FormatInt(t.UnixMilli(), 10)))
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(s.mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
