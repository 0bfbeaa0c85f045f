package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Shebang makes an exported workflow directly executable by a CWL runner.
const Shebang = "#!/usr/bin/env cwl-runner\n\n"

// Format selects a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps a user-supplied name to a Format. Empty means YAML.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "yaml", "yml", "cwl":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/x-yaml"
}

// EncodeYAML renders the document as CWL YAML without a shebang.
func EncodeYAML(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeYAML(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeExecutable renders the document as YAML prefixed with the cwl-runner
// shebang, the form written to workflows/main.cwl.
func EncodeExecutable(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Shebang)
	if err := writeYAML(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJSON renders the document as indented JSON.
func EncodeJSON(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Encode renders the document in the requested format.
func Encode(doc *Document, format Format) ([]byte, error) {
	if format == FormatJSON {
		return EncodeJSON(doc)
	}
	return EncodeYAML(doc)
}

// SaveToFile writes the document to filename. YAML output carries the shebang.
func SaveToFile(doc *Document, filename string, format Format) error {
	var (
		data []byte
		err  error
	)
	if format == FormatJSON {
		data, err = EncodeJSON(doc)
	} else {
		data, err = EncodeExecutable(doc)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return nil
}
