package converter

import (
	"fmt"
	"reflect"

	"github.com/MrEthical07/netapi/params"
)

// JSONMultipart decodes the JSON document carried in the "json" form field of a
// multipart request, then binds uploaded files onto the result the way
// [Properties] does.
type JSONMultipart struct{}

func (JSONMultipart) Name() string { return JSONMultipartName }

func (JSONMultipart) Deserialize(p *params.Params, target reflect.Type) (any, error) {
	if target == paramsType {
		return p, nil
	}
	out := reflect.New(target)

	if doc := p.Get(JSONName); doc != "" {
		if err := JSON.Decode([]byte(doc), out.Interface()); err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", JSONMultipartName, target, err)
		}
	}

	if bindable(target) && len(p.FileKeys()) > 0 {
		tree, err := propertyTree(p, false)
		if err != nil {
			return nil, err
		}
		if err := decodeTree(tree, out.Interface()); err != nil {
			return nil, fmt.Errorf("%s: bind files: %w", JSONMultipartName, err)
		}
	}

	return out.Elem().Interface(), nil
}
