package dispatcher

type Option func(s *Service)

// WithConfig sets the resiliency policy
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithCompleter sets where terminal outcomes are recorded
func WithCompleter(completer Completer) Option {
	return func(s *Service) {
		s.completer = completer
	}
}
