// Package globals resolves {{global.<field>}} placeholders in raw flowspec
// exports, once per target environment.
//
// Substitution is textual: the exported JSON is treated as a template and
// the resolved value is inserted verbatim. Placeholders without a value
// for the environment are left intact and reported, so a later decode
// failure points at the real cause.
package globals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// OutputSuffix is appended to the base name of every substituted file.
const OutputSuffix = "-replaced-globals"

var placeholder = regexp.MustCompile(`\{\{global\.([^}]+)\}\}`)

// Dict maps a global field to its value per environment.
type Dict map[string]map[string]string

// LoadFile reads a globals export of the form
//
//	{"data": {"globals": [{"field": "...", "valuesByEnv": "{\"prod\": \"...\"}"}]}}
//
// valuesByEnv may be a JSON-encoded string (as exported) or an object.
func LoadFile(path string) (Dict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read globals file: %w", err)
	}
	return Decode(data)
}

// Decode parses a globals export.
func Decode(data []byte) (Dict, error) {
	var raw struct {
		Data struct {
			Globals []struct {
				Field       string          `json:"field"`
				ValuesByEnv json.RawMessage `json:"valuesByEnv"`
			} `json:"globals"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("globals: %w", err)
	}

	dict := make(Dict, len(raw.Data.Globals))
	for _, g := range raw.Data.Globals {
		if g.Field == "" {
			continue
		}
		values, err := decodeValues(g.ValuesByEnv)
		if err != nil {
			return nil, fmt.Errorf("globals: field %q: %w", g.Field, err)
		}
		dict[g.Field] = values
	}
	return dict, nil
}

func decodeValues(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]string{}, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		raw = []byte(encoded)
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("valuesByEnv: %w", err)
	}
	out := make(map[string]string, len(values))
	for env, v := range values {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			out[env] = tv
		case bool:
			out[env] = strconv.FormatBool(tv)
		case float64:
			out[env] = strconv.FormatFloat(tv, 'f', -1, 64)
		default:
			encoded, err := json.Marshal(tv)
			if err != nil {
				return nil, err
			}
			out[env] = string(encoded)
		}
	}
	return out, nil
}

// Replace substitutes every placeholder in data for env. It returns the
// substituted text and the sorted, distinct fields that had no value.
func (d Dict) Replace(data []byte, env string) ([]byte, []string) {
	missing := map[string]struct{}{}
	out := placeholder.ReplaceAllFunc(data, func(match []byte) []byte {
		field := string(placeholder.FindSubmatch(match)[1])
		if v, ok := d[field][env]; ok {
			return []byte(v)
		}
		missing[field] = struct{}{}
		return match
	})

	unresolved := make([]string, 0, len(missing))
	for field := range missing {
		unresolved = append(unresolved, field)
	}
	sort.Strings(unresolved)
	return out, unresolved
}

// Report summarizes an ApplyDir run.
type Report struct {
	Files      int                 `json:"files"`
	Written    int                 `json:"written"`
	Unresolved map[string][]string `json:"unresolved,omitempty"` // "<env>/<file>" -> fields
}

// ApplyDir substitutes every .json file in srcDir once per environment
// and writes <outRoot>/<env>/<name>-replaced-globals.json.
func (d Dict) ApplyDir(srcDir, outRoot string, envs []string) (*Report, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("read flowspecs dir: %w", err)
	}
	for _, env := range envs {
		if err := os.MkdirAll(filepath.Join(outRoot, env), 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	report := &Report{Unresolved: map[string][]string{}}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		report.Files++

		data, err := os.ReadFile(filepath.Join(srcDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		base := strings.TrimSuffix(e.Name(), ".json")

		for _, env := range envs {
			out, unresolved := d.Replace(data, env)
			name := base + OutputSuffix + ".json"
			if err := os.WriteFile(filepath.Join(outRoot, env, name), out, 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", name, err)
			}
			report.Written++
			if len(unresolved) > 0 {
				report.Unresolved[env+"/"+e.Name()] = unresolved
				slog.Warn("unresolved globals", "file", e.Name(), "env", env, "fields", unresolved)
			}
			slog.Debug("globals replaced", "file", e.Name(), "env", env)
		}
	}
	return report, nil
}
