package database

import (
	"context"
	"errors"
	"sync"
)

var (
	galleryWriter func() GalleryWriter
	ledgerWriter  func() LedgerWriter
	backendName   string
	providerMu    sync.RWMutex
)

// errNotInitialized is returned when no storage backend has been registered.
var errNotInitialized = errors.New("storage backend not initialized: DATABASE_URL or MARIADB_DSN is required")

// RegisterBackend registers repository constructors for the active storage backend.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, gallery func() GalleryWriter, ledger func() LedgerWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	backendName = name
	galleryWriter = gallery
	ledgerWriter = ledger
}

// ResetBackend clears the registered backend.
func ResetBackend() {
	providerMu.Lock()
	defer providerMu.Unlock()
	backendName = ""
	galleryWriter = nil
	ledgerWriter = nil
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return galleryWriter != nil && ledgerWriter != nil
}

// BackendName returns the name of the registered backend ("postgres", "mariadb").
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return backendName
}

// GetGalleryReader returns a GalleryReader from the registered backend
func GetGalleryReader(ctx context.Context) (GalleryReader, error) {
	return GetGalleryWriter(ctx)
}

// GetGalleryWriter returns a GalleryWriter from the registered backend
func GetGalleryWriter(ctx context.Context) (GalleryWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if galleryWriter == nil {
		return nil, errNotInitialized
	}
	return galleryWriter(), nil
}

// GetLedgerReader returns a LedgerReader from the registered backend
func GetLedgerReader(ctx context.Context) (LedgerReader, error) {
	return GetLedgerWriter(ctx)
}

// GetLedgerWriter returns a LedgerWriter from the registered backend
func GetLedgerWriter(ctx context.Context) (LedgerWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if ledgerWriter == nil {
		return nil, errNotInitialized
	}
	return ledgerWriter(), nil
}
