package converter

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/MrEthical07/netapi/params"
	"github.com/mitchellh/mapstructure"
)

// PropertyTag is the struct tag naming the request key bound to a field.
// Untagged fields match their field name case-insensitively.
const PropertyTag = "param"

var paramsType = reflect.TypeOf((*params.Params)(nil))

// ErrUnsupportedTarget is returned when the properties converter cannot bind the
// target type.
var ErrUnsupportedTarget = errors.New("unsupported properties target")

// Properties binds query, form, and multipart fields onto a struct or map target.
//
// Keys use dotted paths for nested structs ("address.city") and indexes for slice
// elements ("items[0].name"). Repeated keys bind to slice fields. Uploaded files
// bind to *multipart.FileHeader and []*multipart.FileHeader fields. A parameter of
// type *params.Params receives the raw request params.
type Properties struct{}

func (Properties) Name() string { return PropertiesName }

func (Properties) Deserialize(p *params.Params, target reflect.Type) (any, error) {
	if target == paramsType {
		return p, nil
	}
	if !bindable(target) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}

	tree, err := propertyTree(p, true)
	if err != nil {
		return nil, err
	}

	out := reflect.New(target)
	if err := decodeTree(tree, out.Interface()); err != nil {
		return nil, fmt.Errorf("properties: bind %s: %w", target, err)
	}
	return out.Elem().Interface(), nil
}

func bindable(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct || t.Kind() == reflect.Map
}

func decodeTree(tree map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			textUnmarshalerHook,
		),
		WeaklyTypedInput: true,
		TagName:          PropertyTag,
		Squash:           true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(tree)
}

func textUnmarshalerHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	ptr := reflect.New(to)
	u, ok := ptr.Interface().(encoding.TextUnmarshaler)
	if !ok {
		return data, nil
	}
	if err := u.UnmarshalText([]byte(reflect.ValueOf(data).String())); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// propertyTree turns flat request keys into the nested map shape mapstructure
// decodes. Index segments become slices ordered by index.
func propertyTree(p *params.Params, withValues bool) (map[string]any, error) {
	root := map[string]any{}

	if withValues {
		for _, key := range p.Keys() {
			vals := p.Values(key)
			var leaf any = vals[0]
			if len(vals) > 1 {
				leaf = append([]string(nil), vals...)
			}
			if err := insertPath(root, key, leaf); err != nil {
				return nil, err
			}
		}
	}

	for _, key := range p.FileKeys() {
		files := p.Files(key)
		if len(files) == 0 {
			continue
		}
		var leaf any = files[0]
		if len(files) > 1 {
			leaf = files
		}
		if err := insertPath(root, key, leaf); err != nil {
			return nil, err
		}
	}

	for k, child := range root {
		root[k] = collapseIndexes(child)
	}
	return root, nil
}

// insertPath stores leaf under a key such as "items[2].name". Index segments are
// kept as "#2" map keys until collapseIndexes converts them.
func insertPath(root map[string]any, key string, leaf any) error {
	segments, err := splitKey(key)
	if err != nil {
		return err
	}

	node := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			node[seg] = leaf
			return nil
		}
		next, ok := node[seg].(map[string]any)
		if !ok {
			if _, scalar := node[seg]; scalar {
				return fmt.Errorf("key %q conflicts with a scalar value", key)
			}
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
	return nil
}

func splitKey(key string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(key, ".") {
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				out = append(out, part)
				break
			}
			if open > 0 {
				out = append(out, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				return nil, fmt.Errorf("malformed key %q", key)
			}
			idx := part[open+1 : open+end]
			if _, err := strconv.Atoi(idx); err != nil {
				return nil, fmt.Errorf("malformed index in key %q", key)
			}
			out = append(out, "#"+idx)
			part = part[open+end+1:]
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty key")
	}
	return out, nil
}

func collapseIndexes(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	indexed := len(m) > 0
	for k, child := range m {
		m[k] = collapseIndexes(child)
		if !strings.HasPrefix(k, "#") {
			indexed = false
		}
	}
	if !indexed {
		return m
	}

	idx := make([]int, 0, len(m))
	byIndex := make(map[int]any, len(m))
	for k, child := range m {
		n, _ := strconv.Atoi(k[1:])
		idx = append(idx, n)
		byIndex[n] = child
	}
	sort.Ints(idx)
	out := make([]any, 0, len(idx))
	for _, n := range idx {
		out = append(out, byIndex[n])
	}
	return out
}
