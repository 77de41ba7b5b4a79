package sink

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings configure a sink backend. Both a mapping and a string form are accepted,
// the string is either a JSON object or comma separated key=value pairs.
type Settings map[string]any

// ParseSettings parses the string form of settings
func ParseSettings(s string) (Settings, error) {
	s = strings.TrimSpace(s)
	res := Settings{}
	if s == "" {
		return res, nil
	}
	if strings.HasPrefix(s, "{") {
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			return nil, fmt.Errorf("parse settings json: %w", err)
		}
		return res, nil
	}
	for _, pair := range strings.Split(s, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("parse settings: invalid pair %q, expected key=value", pair)
		}
		res[k] = strings.TrimSpace(v)
	}
	return res, nil
}

// UnmarshalYAML accepts a mapping or a string
func (s *Settings) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := ParseSettings(node.Value)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case yaml.MappingNode:
		m := map[string]any{}
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("decode settings: %w", err)
		}
		*s = m
		return nil
	default:
		return fmt.Errorf("settings must be a mapping or a string, line %d", node.Line)
	}
}

// UnmarshalFlag parses the string form from a command line flag
func (s *Settings) UnmarshalFlag(value string) error {
	parsed, err := ParseSettings(value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Merge returns a copy of s with other's keys on top
func (s Settings) Merge(other Settings) Settings {
	res := make(Settings, len(s)+len(other))
	for k, v := range s {
		res[k] = v
	}
	for k, v := range other {
		res[k] = v
	}
	return res
}

// String returns a string value or def
func (s Settings) String(key, def string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	str := strings.TrimSpace(fmt.Sprint(v))
	if str == "" {
		return def
	}
	return str
}

// Strings returns a list value, a string is split on commas
func (s Settings) Strings(key string, def []string) []string {
	var res []string
	switch v := s[key].(type) {
	case []any:
		for _, el := range v {
			if str := strings.TrimSpace(fmt.Sprint(el)); str != "" {
				res = append(res, str)
			}
		}
	case []string:
		res = append(res, v...)
	case string:
		for _, el := range strings.Split(v, ",") {
			if el = strings.TrimSpace(el); el != "" {
				res = append(res, el)
			}
		}
	}
	if len(res) == 0 {
		return def
	}
	return res
}

// Int returns an integer value or def
func (s Settings) Int(key string, def int) (int, error) {
	switch v := s[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		str := strings.TrimSpace(fmt.Sprint(v))
		if str == "" {
			return def, nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("setting %s: %w", key, err)
		}
		return n, nil
	}
}

// Bool returns a boolean value or def
func (s Settings) Bool(key string, def bool) (bool, error) {
	switch v := s[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	default:
		str := strings.TrimSpace(fmt.Sprint(v))
		if str == "" {
			return def, nil
		}
		b, err := strconv.ParseBool(str)
		if err != nil {
			return false, fmt.Errorf("setting %s: %w", key, err)
		}
		return b, nil
	}
}

// Duration returns a duration value ("5s" or seconds as a number) or def
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	switch v := s[key].(type) {
	case nil:
		return def, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		str := strings.TrimSpace(fmt.Sprint(v))
		if str == "" {
			return def, nil
		}
		if secs, err := strconv.ParseFloat(str, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("setting %s: %w", key, err)
		}
		return d, nil
	}
}

// Secrets returns values of password-like keys, used to mask them in logs
func (s Settings) Secrets() []string {
	var res []string
	for k, v := range s {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "password") || strings.Contains(lk, "secret") || strings.Contains(lk, "token") ||
			strings.Contains(lk, "api_key") {
			if str := fmt.Sprint(v); str != "" {
				res = append(res, str)
			}
		}
	}
	sort.Strings(res)
	return res
}
