package worker

import "github.com/viant/geoflow/service/asset"

type Option func(s *Service)

func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithAssets sets the store operations write produced bytes to
func WithAssets(assets *asset.Service) Option {
	return func(s *Service) {
		s.assets = assets
	}
}

func WithRegistry(registry *Registry) Option {
	return func(s *Service) {
		s.registry = registry
	}
}
