// ABOUTME: Pure reducers for settings: overlay on defaults, per-field patches, dotted paths
// ABOUTME: No storage or locking here so the merge rules are testable in isolation

package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidPatch is returned when a patch document cannot be applied.
var ErrInvalidPatch = errors.New("invalid settings patch")

// MergeOverDefaults decodes a persisted snapshot over the compiled-in defaults.
// Categories and fields absent from raw keep their default values and unknown
// fields are ignored. On any decode error the defaults are returned unchanged
// together with the error.
func MergeOverDefaults(raw []byte) (Settings, error) {
	next := Defaults()
	if err := json.Unmarshal(raw, &next); err != nil {
		return Defaults(), fmt.Errorf("decoding persisted settings: %w", err)
	}
	restoreNils(&next, Defaults())
	return next, nil
}

// Patch merges a JSON object into base field by field. Only leaf fields present
// in patch change; lists are leaves and replace wholesale. Field names must
// match exactly. Unknown fields, null values and type mismatches are rejected
// and base is returned untouched.
func Patch(base Settings, patch []byte) (Settings, error) {
	trimmed := bytes.TrimSpace(patch)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return base, fmt.Errorf("%w: expected a JSON object", ErrInvalidPatch)
	}

	// encoding/json folds case when matching fields, so names are checked first.
	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	shape, err := Lookup(Defaults(), "")
	if err != nil {
		return base, err
	}
	if err := checkFields("", doc, shape.(map[string]any)); err != nil {
		return base, err
	}

	next := base.Clone()
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("%w: trailing data after object", ErrInvalidPatch)
	}

	restoreNils(&next, base)
	return next, nil
}

// checkFields walks patch against the JSON shape of the settings record and
// rejects keys that are not exact field names, and null values.
func checkFields(prefix string, patch, shape map[string]any) error {
	for k, v := range patch {
		ref, ok := shape[k]
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidPatch, prefix+k)
		}
		if v == nil {
			return fmt.Errorf("%w: null is not allowed for %q", ErrInvalidPatch, prefix+k)
		}
		sub, isObj := v.(map[string]any)
		refSub, refObj := ref.(map[string]any)
		if isObj && refObj {
			if err := checkFields(prefix+k+".", sub, refSub); err != nil {
				return err
			}
		}
	}
	return nil
}

// PathPatch builds a patch document that sets a single dotted path, for example
// "experiment.randomSeed" = "7". String fields take value verbatim; other
// fields parse it as a JSON literal. Unknown paths and null are rejected.
func PathPatch(path, value string) ([]byte, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in path %q", ErrInvalidPatch, path)
		}
	}

	current, err := Lookup(Defaults(), path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	var leaf any
	if _, isString := current.(string); isString {
		leaf = value
	} else if err := json.Unmarshal([]byte(value), &leaf); err != nil {
		leaf = value
	}
	if leaf == nil {
		return nil, fmt.Errorf("%w: null is not allowed for %q", ErrInvalidPatch, path)
	}

	doc := leaf
	for i := len(parts) - 1; i >= 0; i-- {
		doc = map[string]any{parts[i]: doc}
	}
	return json.Marshal(doc)
}

// Lookup returns the value at a dotted path of the snapshot's JSON form.
// An empty path returns the whole record.
func Lookup(s Settings, path string) (any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	var cur any
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if path == "" {
		return cur, nil
	}

	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not an object", path, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("path %q: unknown field %q", path, part)
		}
	}
	return cur, nil
}

// restoreNils puts back reference fields that a JSON null cleared.
func restoreNils(next *Settings, fallback Settings) {
	if next.Experiment.Metrics == nil {
		next.Experiment.Metrics = fallback.Clone().Experiment.Metrics
	}
}
