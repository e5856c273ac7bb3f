package cache

import "time"

// Option configures the cache
type Option func(s *Service)

// WithTTL sets entry retention; zero keeps entries until explicitly evicted
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithAssetVerifier enables verification of referenced assets on hit
func WithAssetVerifier(verifier AssetVerifier) Option {
	return func(s *Service) {
		s.verifier = verifier
	}
}

// WithShards sets the number of lock shards
func WithShards(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shards = make([]*shard, count)
		}
	}
}
