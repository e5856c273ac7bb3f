package resolver

// DefaultMaxDepth bounds nested workflow composition
const DefaultMaxDepth = 8

type Option func(s *Service)

// WithMaxDepth sets the maximum nesting depth
func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		s.maxDepth = depth
	}
}
