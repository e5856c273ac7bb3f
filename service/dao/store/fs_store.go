package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/geoflow/service/dao"
	"github.com/viant/geoflow/service/dao/criteria"
)

// FsStore is a generic afs backed dao.Service keeping one JSON document per key.
type FsStore[T any] struct {
	basePath    string
	fs          afs.Service
	keySelector func(*T) string
	recordOf    func(*T) criteria.Record
	mu          sync.RWMutex
}

// NewFsStore creates the store, ensuring the base location exists.
func NewFsStore[T any](fs afs.Service, basePath string, keySelector func(*T) string, recordOf func(*T) criteria.Record) (*FsStore[T], error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	basePath = url.Normalize(basePath, file.Scheme)
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, basePath); !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &FsStore[T]{basePath: basePath, fs: fs, keySelector: keySelector, recordOf: recordOf}, nil
}

// Save persists an entity
func (s *FsStore[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	filePath, err := s.filePath(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves an entity
func (s *FsStore[T]) Load(ctx context.Context, key string) (*T, error) {
	filePath, err := s.filePath(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", filePath, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	var ret T
	if err = json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}
	return &ret, nil
}

// Delete removes an entity
func (s *FsStore[T]) Delete(ctx context.Context, key string) error {
	filePath, err := s.filePath(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if exists, _ := s.fs.Exists(ctx, filePath); !exists {
		return dao.ErrNotFound
	}
	if err = s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filePath, err)
	}
	return nil
}

// List returns entities matching parameters; unreadable documents are logged and skipped.
func (s *FsStore[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.basePath, err)
	}
	var result []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			log.Printf("store: failed to read %s: %v", object.URL(), err)
			continue
		}
		var item T
		if err = json.Unmarshal(data, &item); err != nil {
			log.Printf("store: failed to unmarshal %s: %v", object.URL(), err)
			continue
		}
		if s.recordOf != nil && !criteria.Matches(s.recordOf(&item), parameters) {
			continue
		}
		result = append(result, &item)
	}
	return result, nil
}

func (s *FsStore[T]) filePath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", dao.ErrInvalidID
	}
	return url.Join(s.basePath, key+".json"), nil
}
