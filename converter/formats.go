package converter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"reflect"

	"github.com/MrEthical07/netapi/params"
	"github.com/pelletier/go-toml/v2"
	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v3"
)

// Built-in format names.
const (
	PropertiesName    = "properties"
	JSONName          = "json"
	JSONMultipartName = "json-multipart"
	XMLName           = "xml"
	YAMLName          = "yaml"
	TOMLName          = "toml"
	MsgPackName       = "msgpack"
)

// Format describes a document wire format usable in both directions.
type Format struct {
	Name        string
	ContentType string
	Encode      func(w io.Writer, v any) error
	Decode      func(data []byte, v any) error
}

var msgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.MapType = reflect.TypeOf(map[string]any(nil))
	h.RawToString = true
	h.WriteExt = true
	return h
}()

var (
	JSON = Format{
		Name:        JSONName,
		ContentType: "application/json; charset=utf-8",
		Encode: func(w io.Writer, v any) error {
			return json.NewEncoder(w).Encode(v)
		},
		Decode: json.Unmarshal,
	}

	XML = Format{
		Name:        XMLName,
		ContentType: "application/xml; charset=utf-8",
		Encode: func(w io.Writer, v any) error {
			if _, err := io.WriteString(w, xml.Header); err != nil {
				return err
			}
			return xml.NewEncoder(w).Encode(v)
		},
		Decode: xml.Unmarshal,
	}

	YAML = Format{
		Name:        YAMLName,
		ContentType: "application/yaml; charset=utf-8",
		Encode: func(w io.Writer, v any) error {
			enc := yaml.NewEncoder(w)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
		Decode: yaml.Unmarshal,
	}

	TOML = Format{
		Name:        TOMLName,
		ContentType: "application/toml; charset=utf-8",
		Encode: func(w io.Writer, v any) error {
			return toml.NewEncoder(w).Encode(v)
		},
		Decode: toml.Unmarshal,
	}

	MsgPack = Format{
		Name:        MsgPackName,
		ContentType: "application/msgpack",
		Encode: func(w io.Writer, v any) error {
			return codec.NewEncoder(w, msgpackHandle).Encode(v)
		},
		Decode: func(data []byte, v any) error {
			return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
		},
	}
)

type documentRequest struct {
	format Format
}

// Document returns a request converter for f. The document is read from the
// request parameter named like the format when present, otherwise from the raw
// body. An empty document yields the zero value of the target type. A
// *params.Params target receives the request params unchanged.
func Document(f Format) RequestConverter {
	return documentRequest{format: f}
}

func (d documentRequest) Name() string { return d.format.Name }

func (d documentRequest) Deserialize(p *params.Params, target reflect.Type) (any, error) {
	if target == paramsType {
		return p, nil
	}

	var data []byte
	if p.Has(d.format.Name) {
		data = []byte(p.Get(d.format.Name))
	} else {
		data = p.Body()
	}

	out := reflect.New(target)
	if len(bytes.TrimSpace(data)) == 0 {
		return out.Elem().Interface(), nil
	}
	if err := d.format.Decode(data, out.Interface()); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", d.format.Name, target, err)
	}
	return out.Elem().Interface(), nil
}

type documentResponse struct {
	format Format
}

// Writer returns a response converter for f.
func Writer(f Format) ResponseConverter {
	return documentResponse{format: f}
}

func (d documentResponse) Name() string        { return d.format.Name }
func (d documentResponse) ContentType() string { return d.format.ContentType }

func (d documentResponse) Serialize(w io.Writer, v any) error {
	return d.format.Encode(w, v)
}
