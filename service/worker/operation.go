package worker

import (
	"context"
	"fmt"

	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/service/asset"
	"github.com/viant/geoflow/service/protocol"
	"github.com/viant/structology/conv"
)

// Invocation is one operation call
type Invocation struct {
	Request *protocol.Request
	// Assets stores produced bytes; nil when the worker has no asset store.
	Assets *asset.Service
}

// Result is what an operation produces
type Result struct {
	Outputs map[string]interface{}
	Assets  []*output.Asset
}

// Operation is an opaque unit of computation
type Operation interface {
	Execute(ctx context.Context, invocation *Invocation) (*Result, error)
}

// Func adapts a function to Operation
type Func func(ctx context.Context, invocation *Invocation) (*Result, error)

func (f Func) Execute(ctx context.Context, invocation *Invocation) (*Result, error) {
	return f(ctx, invocation)
}

type typed[I any] struct {
	fn        func(ctx context.Context, input *I, invocation *Invocation) (*Result, error)
	converter *conv.Converter
}

func (t *typed[I]) Execute(ctx context.Context, invocation *Invocation) (*Result, error) {
	input := new(I)
	if len(invocation.Request.Inputs) > 0 {
		if err := t.converter.Convert(invocation.Request.Inputs, input); err != nil {
			return nil, fmt.Errorf("invalid inputs for %v: %w", invocation.Request.OperationKey(), err)
		}
	}
	return t.fn(ctx, input, invocation)
}

// Typed adapts a function taking a struct input; request inputs are converted by field name
func Typed[I any](fn func(ctx context.Context, input *I, invocation *Invocation) (*Result, error)) Operation {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	return &typed[I]{fn: fn, converter: conv.NewConverter(options)}
}
