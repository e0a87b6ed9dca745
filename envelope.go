package netapi

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
)

// Response wraps every non-download operation result.
type Response struct {
	XMLName xml.Name `json:"-" yaml:"-" toml:"-" codec:"-" xml:"response"`
	Dto     any      `json:"dto" xml:"dto,omitempty" yaml:"dto" toml:"dto,omitempty" codec:"dto"`
}

// Exception is the body of an [ExceptionResponse].
type Exception struct {
	Code    ErrorCode `json:"code" xml:"code" yaml:"code" toml:"code" codec:"code"`
	Message string    `json:"message" xml:"message" yaml:"message" toml:"message" codec:"message"`
	Causes  []string  `json:"causes,omitempty" xml:"causes>cause,omitempty" yaml:"causes,omitempty" toml:"causes,omitempty" codec:"causes,omitempty"`
}

// ExceptionResponse is the uniform failure envelope.
type ExceptionResponse struct {
	XMLName   xml.Name  `json:"-" yaml:"-" toml:"-" codec:"-" xml:"exceptionResponse"`
	Exception Exception `json:"exception" xml:"exception" yaml:"exception" toml:"exception" codec:"exception"`
}

func newExceptionResponse(e *DispatchError) ExceptionResponse {
	return ExceptionResponse{Exception: Exception{
		Code:    e.Code,
		Message: e.Message,
		Causes:  e.Causes(),
	}}
}

// Disposition is the Content-Disposition type of a download.
type Disposition string

const (
	Inline     Disposition = "inline"
	Attachment Disposition = "attachment"
)

// Downloadable results are streamed to the client as-is, bypassing response
// converters. Dispose is called once the transfer ends, successful or not.
type Downloadable interface {
	Stream() (io.Reader, error)
	FileName() string
	ContentType() string
	Disposition() Disposition
	Charset() string
	Dispose() error
}

// Download is a [Downloadable] over an arbitrary reader. An io.Closer reader is
// closed by Dispose. An empty MIMEType is sniffed from the first bytes.
type Download struct {
	Reader   io.Reader
	Name     string
	MIMEType string
	Mode     Disposition
	Encoding string
}

func (d *Download) Stream() (io.Reader, error) { return d.Reader, nil }
func (d *Download) FileName() string           { return d.Name }
func (d *Download) ContentType() string        { return d.MIMEType }
func (d *Download) Charset() string            { return d.Encoding }

func (d *Download) Disposition() Disposition {
	if d.Mode == "" {
		return Attachment
	}
	return d.Mode
}

func (d *Download) Dispose() error {
	if c, ok := d.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FileDownload opens path as an attachment download.
func FileDownload(path, contentType string) (*Download, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Download{
		Reader:   f,
		Name:     filepath.Base(path),
		MIMEType: contentType,
	}, nil
}
