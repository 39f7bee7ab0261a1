package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeJSON strictly decodes authored content and validates it. Unknown
// fields are rejected.
func DecodeJSON(data []byte) (*Content, error) {
	var c Content
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("malformed campaign JSON: %v", err)}}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeYAML is the YAML counterpart of DecodeJSON.
func DecodeYAML(data []byte) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("malformed campaign YAML: %v", err)}}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// EncodeJSON renders content in its persisted form.
func EncodeJSON(c *Content) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal campaign content: %w", err)
	}
	return data, nil
}

// EncodeYAML renders content for authoring export.
func EncodeYAML(c *Content) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal campaign content: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush campaign YAML: %w", err)
	}
	return buf.Bytes(), nil
}
