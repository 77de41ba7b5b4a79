package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newscrawl/pkg/sink"
)

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: func() *Config {
				cfg := Default()
				cfg.Sources = []SourceConfig{{Name: "cnn", StartURLs: []string{"https://www.cnn.com"}}}
				cfg.Sink.Settings = sink.Settings{"addr": "localhost:6379", "db": 2, "addresses": []any{"a", "b"}}
				return cfg
			},
		},
		{
			name: "bad summary method",
			config: func() *Config {
				cfg := Default()
				cfg.Pipeline.SummaryMethod = "llm"
				return cfg
			},
			wantErr: true,
			errMsg:  "pipeline.summary_method",
		},
		{
			name: "source without urls",
			config: func() *Config {
				cfg := Default()
				cfg.Sources = []SourceConfig{{Name: "empty"}}
				return cfg
			},
			wantErr: true,
			errMsg:  "needs start_urls or feeds",
		},
		{
			name: "server enabled without listen",
			config: func() *Config {
				cfg := Default()
				cfg.Server.Enabled = true
				cfg.Server.Listen = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "server.listen is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyAgainstEmbeddedSchema(tt.config())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSchemaValidator(t *testing.T) {
	root := map[string]any{
		"$ref": "#/$defs/Root",
		"$defs": map[string]any{
			"Root": map[string]any{
				"type":     "object",
				"required": []any{"name"},
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"count": map[string]any{"type": "integer"},
					"flags": map[string]any{"type": "array", "items": map[string]any{"type": "boolean"}},
					"extra": map[string]any{"type": "object"},
				},
			},
		},
	}
	v := schemaValidator{root: root}

	tests := []struct {
		name   string
		doc    map[string]any
		errMsg string
	}{
		{"valid", map[string]any{"name": "a", "count": 2.0, "flags": []any{true}, "extra": map[string]any{"any": 1}}, ""},
		{"missing required", map[string]any{"count": 1.0}, "missing name"},
		{"unknown key", map[string]any{"name": "a", "other": 1}, "unknown key other"},
		{"not integer", map[string]any{"name": "a", "count": 1.5}, "count: expected integer"},
		{"bad array item", map[string]any{"name": "a", "flags": []any{"yes"}}, "flags[0]: expected boolean"},
		{"null array", map[string]any{"name": "a", "flags": nil}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.check(root, tc.doc, "")
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.Sink.Backend = ""
	err := validateRequiredFields(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink.backend is required")

	cfg = Default()
	cfg.Server.Timeout = 10 * time.Second
	assert.NoError(t, validateRequiredFields(cfg))
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)

	// verify schema can be marshaled to JSON
	data, err := schema.MarshalJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	schemaStr := string(data)
	assert.Contains(t, schemaStr, "Config")
	assert.Contains(t, schemaStr, "summary_max_chars")
	assert.Contains(t, schemaStr, "start_urls")
}
