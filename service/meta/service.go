package meta

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads YAML/JSON documents from any afs supported storage relative to a base URL
type Service struct {
	fs      afs.Service
	baseURL string
	options []storage.Option
}

// BaseURL returns the storage root
func (s *Service) BaseURL() string {
	return s.baseURL
}

// URL resolves location against the base URL unless it is already absolute
func (s *Service) URL(location string) string {
	if url.IsRelative(location) && s.baseURL != "" {
		return url.Join(s.baseURL, location)
	}
	return url.Normalize(location, file.Scheme)
}

// Download returns the document with ${env.KEY} expressions expanded
func (s *Service) Download(ctx context.Context, location string) ([]byte, error) {
	URL := s.URL(location)
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", URL, err)
	}
	return []byte(expandEnvExpr(string(data))), nil
}

// Load decodes the YAML document at location into target (which may be a *yaml.Node)
func (s *Service) Load(ctx context.Context, location string, target interface{}) error {
	data, err := s.Download(ctx, location)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %v: %w", s.URL(location), err)
	}
	return nil
}

// Exists returns true when the document exists
func (s *Service) Exists(ctx context.Context, location string) (bool, error) {
	return s.fs.Exists(ctx, s.URL(location), s.options...)
}

// List returns the names (without extension) of documents with one of exts under location
func (s *Service) List(ctx context.Context, location string, exts ...string) ([]string, error) {
	URL := s.URL(location)
	objects, err := s.fs.List(ctx, URL, append([]storage.Option{option.NewRecursive(false)}, s.options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", URL, err)
	}
	var names []string
	for _, obj := range objects {
		if obj.IsDir() {
			continue
		}
		ext := path.Ext(obj.Name())
		if len(exts) > 0 && !hasExt(exts, ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(obj.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

func hasExt(exts []string, ext string) bool {
	for _, candidate := range exts {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}

// New creates a meta service; options (e.g. *embed.FS for embed:// URLs) are passed to every storage call
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	if baseURL != "" {
		baseURL = url.Normalize(baseURL, file.Scheme)
	}
	return &Service{fs: fs, baseURL: baseURL, options: options}
}
