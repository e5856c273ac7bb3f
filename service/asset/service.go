// Package asset stores operation output bytes outside the result cache.
// Descriptors reference assets by content derived identifiers only.
package asset

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/geoflow/model/output"
	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned when an asset is missing from the store
var ErrNotFound = errors.New("asset: not found")

// Service is an afs backed asset store
type Service struct {
	fs      afs.Service
	baseURL string
}

// BaseURL returns the store location
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Put stores data and returns its reference. Identical content yields the same id.
func (s *Service) Put(ctx context.Context, data []byte, contentType string) (*output.Asset, error) {
	sum := blake2b.Sum256(data)
	id := hex.EncodeToString(sum[:])
	location := s.location(id)
	if exists, _ := s.fs.Exists(ctx, location); !exists {
		if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to store asset %v: %w", id, err)
		}
	}
	return &output.Asset{ID: id, URL: location, Type: contentType, Size: int64(len(data))}, nil
}

// Exists reports whether the referenced asset is still stored
func (s *Service) Exists(ctx context.Context, asset *output.Asset) (bool, error) {
	if asset == nil || asset.ID == "" {
		return false, nil
	}
	return s.fs.Exists(ctx, s.location(asset.ID))
}

// Get returns the asset bytes
func (s *Service) Get(ctx context.Context, asset *output.Asset) ([]byte, error) {
	exists, err := s.Exists(ctx, asset)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, asset.ID)
	}
	return s.fs.DownloadWithURL(ctx, s.location(asset.ID))
}

// Delete removes the asset
func (s *Service) Delete(ctx context.Context, asset *output.Asset) error {
	if exists, _ := s.Exists(ctx, asset); !exists {
		return nil
	}
	return s.fs.Delete(ctx, s.location(asset.ID))
}

// location shards ids by their first two characters
func (s *Service) location(id string) string {
	if len(id) < 2 {
		return url.Join(s.baseURL, id)
	}
	return url.Join(s.baseURL, id[:2], id)
}

// New creates an asset store rooted at baseURL
func New(fs afs.Service, baseURL string) *Service {
	return &Service{fs: fs, baseURL: url.Normalize(baseURL, file.Scheme)}
}
