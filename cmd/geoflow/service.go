package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/geoflow"
	"gopkg.in/yaml.v3"
)

// newService builds the engine from --config and --workflows
func newService(ctx context.Context, cmd *cobra.Command, options ...geoflow.Option) (*geoflow.Service, error) {
	return newServiceWithBase(ctx, cmd, "", options...)
}

// newServiceWithBase uses fallbackBaseURL when neither flag names a workflow location
func newServiceWithBase(ctx context.Context, cmd *cobra.Command, fallbackBaseURL string, options ...geoflow.Option) (*geoflow.Service, error) {
	config := geoflow.DefaultConfig()
	if URL, _ := cmd.Flags().GetString("config"); URL != "" {
		var err error
		if config, err = geoflow.LoadConfig(ctx, afs.New(), URL); err != nil {
			return nil, err
		}
	}
	if baseURL, _ := cmd.Flags().GetString("workflows"); baseURL != "" {
		config.Workflows.BaseURL = baseURL
	} else if config.Workflows.BaseURL == "" {
		config.Workflows.BaseURL = fallbackBaseURL
	}
	return geoflow.New(append([]geoflow.Option{geoflow.WithConfig(config)}, options...)...)
}

// parseAssignments turns k=v pairs into a map; values are decoded as YAML scalars or documents
func parseAssignments(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ret := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		var decoded interface{}
		if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		ret[key] = decoded
	}
	return ret, nil
}
