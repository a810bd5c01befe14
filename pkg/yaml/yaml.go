package yaml

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

func Unmarshal(in []byte, out any) error {
	return yaml.Unmarshal(in, out)
}

func Encode(v any, indent int) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	e := yaml.NewEncoder(b)
	e.SetIndent(indent)

	if err := e.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Patch changes key/value pair inside path without breaking file formatting.
// Nil value removes the key. Missing path is created.
func Patch(src []byte, key string, value any, path ...string) ([]byte, error) {
	parent, missing, err := findParent(src, path...)
	if err != nil {
		return nil, err
	}

	var dst []byte

	switch {
	case len(missing) > 0 && value == nil:
		return src, nil
	case parent == nil:
		dst, err = addToEnd(src, nest(key, value, path))
	case len(missing) > 0:
		dst, err = addOrReplace(src, missing[0], nest(key, value, missing[1:]), parent)
	default:
		dst, err = addOrReplace(src, key, value, parent)
	}
	if err != nil {
		return nil, err
	}

	if err = yaml.Unmarshal(dst, map[string]any{}); err != nil {
		return nil, err
	}

	return dst, nil
}

// nest wraps key/value into maps of path, outer first
func nest(key string, value any, path []string) any {
	var v any = map[string]any{key: value}
	for i := len(path) - 1; i >= 0; i-- {
		v = map[string]any{path[i]: v}
	}
	return v
}

// findParent returns the deepest existing node of path and the rest of path
func findParent(src []byte, path ...string) (*yaml.Node, []string, error) {
	if len(src) == 0 {
		return nil, path, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, nil, err
	}

	if root.Content == nil {
		return nil, path, nil
	}

	parent := root.Content[0] // yaml.DocumentNode
	for i, name := range path {
		_, child := findChild(parent, name)
		if child == nil || child.Kind != yaml.MappingNode {
			if i == 0 {
				return nil, path, nil
			}
			return parent, path[i:], nil
		}
		parent = child
	}
	return parent, nil, nil
}

func findChild(node *yaml.Node, name string) (key, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

func firstChild(node *yaml.Node) *yaml.Node {
	if node.Content == nil {
		return node
	}
	return node.Content[0]
}

func lastChild(node *yaml.Node) *yaml.Node {
	if node.Content == nil {
		return node
	}
	return lastChild(node.Content[len(node.Content)-1])
}

func addOrReplace(src []byte, key string, value any, parent *yaml.Node) ([]byte, error) {
	put, err := Encode(map[string]any{key: value}, 2)
	if err != nil {
		return nil, err
	}

	if nodeKey, nodeValue := findChild(parent, key); nodeKey != nil {
		put = addIndent(put, nodeKey.Column-1)

		i0 := lineOffset(src, nodeKey.Line)
		i1 := lineOffset(src, lastChild(nodeValue).Line+1)

		if i1 < 0 { // no new line on the end of file
			if value != nil {
				return append(src[:i0], put...), nil
			}
			return src[:i0], nil
		}

		dst := make([]byte, 0, len(src)+len(put))
		dst = append(dst, src[:i0]...)
		if value != nil {
			dst = append(dst, put...)
		}
		return append(dst, src[i1:]...), nil
	}

	if value == nil {
		return src, nil
	}

	put = addIndent(put, firstChild(parent).Column-1)

	i := lineOffset(src, lastChild(parent).Line+1)
	if i < 0 { // no new line on the end of file
		if l := len(src); l > 0 && src[l-1] != '\n' {
			src = append(src, '\n')
		}
		return append(src, put...), nil
	}

	dst := make([]byte, 0, len(src)+len(put))
	dst = append(dst, src[:i]...)
	dst = append(dst, put...)
	return append(dst, src[i:]...), nil
}

func addToEnd(src []byte, v any) ([]byte, error) {
	put, err := Encode(v, 2)
	if err != nil {
		return nil, err
	}

	dst := make([]byte, 0, len(src)+len(put)+1)
	dst = append(dst, src...)
	if l := len(src); l > 0 && src[l-1] != '\n' {
		dst = append(dst, '\n')
	}
	return append(dst, put...), nil
}

func addIndent(src []byte, indent int) (dst []byte) {
	pre := bytes.Repeat([]byte{' '}, indent)
	for len(src) > 0 {
		dst = append(dst, pre...)
		i := bytes.IndexByte(src, '\n') + 1
		if i == 0 {
			dst = append(dst, src...)
			break
		}
		dst = append(dst, src[:i]...)
		src = src[i:]
	}
	return
}

func lineOffset(b []byte, line int) (offset int) {
	for l := 1; ; l++ {
		if l == line {
			return offset
		}

		i := bytes.IndexByte(b[offset:], '\n') + 1
		if i == 0 {
			break
		}
		offset += i
	}
	return -1
}
