package bundle

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const dockerRequirement = "DockerRequirement"

// InjectDockerPull sets hints.DockerRequirement.dockerPull in a CWL tool
// description. A leading shebang line is kept, followed by a blank line.
// Comments survive the round trip. Hints written as a list get their
// DockerRequirement entry replaced or appended.
func InjectDockerPull(data []byte, dockerPull string) ([]byte, error) {
	var shebang []byte
	body := data
	if bytes.HasPrefix(data, []byte("#!/")) {
		line := data
		body = nil
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, body = data[:i], data[i+1:]
		}
		shebang = append([]byte(nil), bytes.TrimRight(line, "\r")...)
		shebang = append(shebang, '\n', '\n')
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse CWL: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("parse CWL: document is not a mapping")
	}
	root := doc.Content[0]

	hints := lookup(root, "hints")
	switch {
	case hints != nil && hints.Kind == yaml.MappingNode:
		set(hints, dockerRequirement, mapping("dockerPull", dockerPull))
	case hints != nil && hints.Kind == yaml.SequenceNode:
		entry := mapping("class", dockerRequirement, "dockerPull", dockerPull)
		replaced := false
		for i, item := range hints.Content {
			if class := lookup(item, "class"); class != nil && class.Value == dockerRequirement {
				hints.Content[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			hints.Content = append(hints.Content, entry)
		}
	default:
		set(root, "hints", mapping())
		set(lookup(root, "hints"), dockerRequirement, mapping("dockerPull", dockerPull))
	}

	var buf bytes.Buffer
	buf.Write(shebang)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode CWL: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode CWL: %w", err)
	}
	return buf.Bytes(), nil
}

// lookup returns the value node for key in a mapping node.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// set replaces the value for key in place, or appends the pair.
func set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalar(key), value)
}

// mapping builds a string-to-string mapping node from key, value pairs.
func mapping(kv ...string) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Content = append(m.Content, scalar(kv[i]), scalar(kv[i+1]))
	}
	return m
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
