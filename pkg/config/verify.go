package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema.
// It checks that every key is known to the schema, required keys are present and
// scalar types match, then runs the required fields check.
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	var schema map[string]any
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	v := schemaValidator{root: schema}
	if err := v.check(schema, configMap, ""); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}

	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	if cfg.Server.Enabled && cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required when server is enabled")
	}
	if cfg.Sink.Backend == "" {
		return fmt.Errorf("sink.backend is required")
	}
	for i, src := range cfg.Sources {
		if len(src.StartURLs) == 0 && len(src.Feeds) == 0 {
			return fmt.Errorf("sources[%d] %s needs start_urls or feeds", i, src.Name)
		}
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}

// schemaValidator walks a decoded document along a reflected schema
type schemaValidator struct {
	root map[string]any
}

func (v schemaValidator) check(node map[string]any, value any, path string) error {
	node = v.resolve(node)
	if value == nil {
		return nil // null for empty slices and maps
	}

	switch typ, _ := node["type"].(string); typ {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object", v.name(path))
		}
		return v.checkObject(node, obj, path)
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array", v.name(path))
		}
		items, _ := node["items"].(map[string]any)
		if items == nil {
			return nil
		}
		for i, el := range arr {
			if err := v.check(items, el, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s: expected string", v.name(path))
		}
		if enum, ok := node["enum"].([]any); ok && !contains(enum, value) {
			return fmt.Errorf("%s: %v is not one of %v", v.name(path), value, enum)
		}
	case "integer":
		if f, ok := value.(float64); !ok || f != math.Trunc(f) {
			return fmt.Errorf("%s: expected integer", v.name(path))
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean", v.name(path))
		}
	}
	return nil
}

func (v schemaValidator) checkObject(node, obj map[string]any, path string) error {
	props, _ := node["properties"].(map[string]any)
	if props == nil {
		return nil // free-form mapping
	}

	if req, ok := node["required"].([]any); ok {
		for _, r := range req {
			if key, ok := r.(string); ok {
				if _, found := obj[key]; !found {
					return fmt.Errorf("%s: missing %s", v.name(path), key)
				}
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prop, ok := props[k].(map[string]any)
		if !ok {
			if extra, _ := node["additionalProperties"].(bool); extra {
				continue
			}
			return fmt.Errorf("%s: unknown key %s", v.name(path), k)
		}
		if err := v.check(prop, obj[k], strings.TrimPrefix(path+"."+k, ".")); err != nil {
			return err
		}
	}
	return nil
}

// resolve follows a local "#/$defs/..." reference
func (v schemaValidator) resolve(node map[string]any) map[string]any {
	for range 8 { // bounded, refs may chain
		ref, ok := node["$ref"].(string)
		if !ok {
			return node
		}
		defs, _ := v.root["$defs"].(map[string]any)
		target, _ := defs[strings.TrimPrefix(ref, "#/$defs/")].(map[string]any)
		if target == nil {
			return node
		}
		node = target
	}
	return node
}

func (v schemaValidator) name(path string) string {
	if path == "" {
		return "config"
	}
	return path
}

func contains(values []any, v any) bool {
	for _, el := range values {
		if el == v {
			return true
		}
	}
	return false
}
