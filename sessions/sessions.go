// Package sessions tracks the contract file each client has uploaded. A
// session outlives single requests; replacing or resetting it removes the
// previously stored file from disk before the new state is committed.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
)

// Session is the per-client state retained between requests.
type Session struct {
	PDFFilePath      string `json:"pdf_file_path,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
}

// Store keeps sessions by client id. Absent ids read as the zero Session;
// writes for one id are exclusive.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, id string, s Session) error
	Delete(ctx context.Context, id string) error
}

// ReplaceFile commits an uploaded file to the session. The session's prior
// file is removed from disk first, so an abandoned upload never leaks.
func ReplaceFile(ctx context.Context, store Store, id, path, filename string) error {
	prev, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	removeStoredFile(prev.PDFFilePath)
	return store.Put(ctx, id, Session{PDFFilePath: path, OriginalFilename: filename})
}

// Reset removes the session's stored file from disk and clears the session.
func Reset(ctx context.Context, store Store, id string) error {
	prev, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	removeStoredFile(prev.PDFFilePath)
	return store.Delete(ctx, id)
}

func removeStoredFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("sessions: removing stored file failed", "path", path, "error", err)
	}
}

// Memory is the in-process session store, the default backend.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

func (m *Memory) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id], nil
}

func (m *Memory) Put(_ context.Context, id string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
