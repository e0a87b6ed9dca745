package params

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrBodyTooLarge is returned when the request body exceeds Options.MaxBodySize.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrMalformedRequest is returned when the body cannot be parsed for its content type.
	ErrMalformedRequest = errors.New("malformed request body")
	// ErrLength is returned by [Params.String] for values outside the allowed length.
	ErrLength = errors.New("parameter length out of range")
)

// Options bounds request parsing.
type Options struct {
	// MaxMemory is the multipart memory threshold; larger parts spill to disk.
	MaxMemory int64
	// MaxBodySize caps the request body. Zero disables the cap.
	MaxBodySize int64
}

// Params holds the parsed data of one request.
type Params struct {
	query       url.Values
	values      url.Values
	files       map[string][]*multipart.FileHeader
	body        []byte
	contentType string
	form        *multipart.Form
}

// Parse reads r according to its content type. Query parameters are always
// available; form and multipart fields are merged after them. Any other body is
// kept raw.
func Parse(r *http.Request, opts Options) (*Params, error) {
	p := &Params{
		query:  r.URL.Query(),
		values: url.Values{},
	}
	for k, v := range p.query {
		p.values[k] = append([]string(nil), v...)
	}

	if r.Body == nil || r.Body == http.NoBody {
		return p, nil
	}
	if opts.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, opts.MaxBodySize)
	}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		mediaType = parsed
	}
	p.contentType = mediaType

	switch mediaType {
	case "multipart/form-data":
		maxMemory := opts.MaxMemory
		if maxMemory <= 0 {
			maxMemory = 32 << 20
		}
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, classify(err)
		}
		p.form = r.MultipartForm
		for k, v := range r.MultipartForm.Value {
			p.values[k] = append(p.values[k], v...)
		}
		p.files = r.MultipartForm.File
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, classify(err)
		}
		for k, v := range r.PostForm {
			p.values[k] = append(p.values[k], v...)
		}
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, classify(err)
		}
		p.body = body
	}

	return p, nil
}

func classify(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %v", ErrBodyTooLarge, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
}

// Get returns the first value of name, or "".
func (p *Params) Get(name string) string {
	return p.values.Get(name)
}

// Has reports whether name was supplied.
func (p *Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Values returns every value supplied for name, query values first.
func (p *Params) Values(name string) []string {
	return p.values[name]
}

// All returns the merged query and form values. The result must not be modified.
func (p *Params) All() url.Values {
	return p.values
}

// Keys returns the sorted parameter names.
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the first value of name when its length lies within [min, max].
// A missing value yields def. max <= 0 disables the upper bound.
func (p *Params) String(name string, min, max int, def string) (string, error) {
	if !p.Has(name) {
		return def, nil
	}
	v := p.Get(name)
	if len(v) < min || (max > 0 && len(v) > max) {
		return "", fmt.Errorf("%w: %s has length %d, allowed [%d, %d]", ErrLength, name, len(v), min, max)
	}
	return v, nil
}

// Query returns the decoded query string.
func (p *Params) Query() url.Values {
	return p.query
}

// Files returns the uploaded files for the multipart field name.
func (p *Params) Files(name string) []*multipart.FileHeader {
	return p.files[name]
}

// FileKeys returns the sorted multipart field names that carry uploads.
func (p *Params) FileKeys() []string {
	keys := make([]string, 0, len(p.files))
	for k := range p.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// File returns the first uploaded file for name, or nil.
func (p *Params) File(name string) *multipart.FileHeader {
	if fs := p.files[name]; len(fs) > 0 {
		return fs[0]
	}
	return nil
}

// Body returns the raw body for requests that were not form encoded.
func (p *Params) Body() []byte {
	return p.body
}

// ContentType returns the request media type without parameters.
func (p *Params) ContentType() string {
	return p.contentType
}

// Dispose releases temporary multipart files. It is safe to call more than once.
func (p *Params) Dispose() error {
	if p == nil || p.form == nil {
		return nil
	}
	form := p.form
	p.form = nil
	return form.RemoveAll()
}
