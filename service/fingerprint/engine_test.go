package fingerprint

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	var testCases = []struct {
		description string
		input       interface{}
		expect      string
	}{
		{description: "sorted keys", input: map[string]interface{}{"b": 1, "a": "x"}, expect: `{"a":"x","b":1}`},
		{description: "integral float", input: 10.0, expect: `10`},
		{description: "fraction", input: 0.25, expect: `2.5e-01`},
		{description: "json number", input: json.Number("10"), expect: `10`},
		{description: "json float number", input: json.Number("0.25"), expect: `2.5e-01`},
		{description: "large integral float", input: float64(1 << 60), expect: `1152921504606846976`},
		{description: "float above int64", input: 1e20, expect: `100000000000000000000`},
		{description: "max uint64 json number", input: json.Number("18446744073709551615"), expect: `18446744073709551615`},
		{description: "nested list", input: []interface{}{map[string]string{"z": "1", "y": "2"}, nil, true}, expect: `[{"y":"2","z":"1"},null,true]`},
		{description: "time in utc", input: time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)), expect: `"2024-05-01T11:00:00Z"`},
		{description: "struct", input: struct {
			Z int    `json:"z"`
			A string `json:"a"`
		}{Z: 3, A: "v"}, expect: `{"a":"v","z":3}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := Canonical(testCase.input)
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(actual))
		})
	}

	for _, pair := range [][2]interface{}{{int64(1 << 60), float64(1 << 60)}, {uint64(1 << 63), float64(1 << 63)}} {
		fromInt, err := Canonical(pair[0])
		require.NoError(t, err)
		fromFloat, err := Canonical(pair[1])
		require.NoError(t, err)
		assert.Equal(t, string(fromInt), string(fromFloat))
	}

	_, err := Canonical(math.NaN())
	assert.Error(t, err)
}

func TestEngine_Fingerprint(t *testing.T) {
	engine := New()
	base := map[string]Input{
		"resolution": LiteralInput(10),
		"bbox":       LiteralInput([]interface{}{1.5, 2.5, 3.5, 4.5}),
		"raster":     UpstreamInput("abc123", "raster"),
	}
	expected, err := engine.Fingerprint("compute_index", "1", base)
	require.NoError(t, err)
	assert.Len(t, expected, 64)

	var testCases = []struct {
		description string
		operation   string
		version     string
		inputs      map[string]Input
		engine      *Engine
		same        bool
	}{
		{
			description: "numeric type does not matter",
			operation:   "compute_index", version: "1",
			inputs: map[string]Input{
				"resolution": LiteralInput(10.0),
				"bbox":       LiteralInput([]interface{}{1.5, 2.5, 3.5, 4.5}),
				"raster":     UpstreamInput("abc123", "raster"),
			},
			same: true,
		},
		{
			description: "different version",
			operation:   "compute_index", version: "2",
			inputs: base,
		},
		{
			description: "different upstream",
			operation:   "compute_index", version: "1",
			inputs: map[string]Input{
				"resolution": LiteralInput(10),
				"bbox":       LiteralInput([]interface{}{1.5, 2.5, 3.5, 4.5}),
				"raster":     UpstreamInput("abc124", "raster"),
			},
		},
		{
			description: "literal equal to upstream text",
			operation:   "compute_index", version: "1",
			inputs: map[string]Input{
				"resolution": LiteralInput(10),
				"bbox":       LiteralInput([]interface{}{1.5, 2.5, 3.5, 4.5}),
				"raster":     LiteralInput("abc123"),
			},
		},
		{
			description: "namespace",
			operation:   "compute_index", version: "1",
			inputs: base,
			engine: New(WithNamespace("worker-image:2")),
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			anEngine := engine
			if testCase.engine != nil {
				anEngine = testCase.engine
			}
			actual, err := anEngine.Fingerprint(testCase.operation, testCase.version, testCase.inputs)
			require.NoError(t, err)
			if testCase.same {
				assert.Equal(t, expected, actual)
				return
			}
			assert.NotEqual(t, expected, actual)
		})
	}
}

func TestEngine_Fingerprint_Stable(t *testing.T) {
	engine := New()
	inputs := map[string]Input{}
	for i, key := range []string{"e", "d", "c", "b", "a"} {
		inputs[key] = LiteralInput(map[string]interface{}{"i": i, "k": key})
	}
	first, err := engine.Fingerprint("op", "1", inputs)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := engine.Fingerprint("op", "1", inputs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	_, err = engine.Fingerprint("", "1", inputs)
	assert.Error(t, err)
}
