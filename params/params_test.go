package params

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryAndForm(t *testing.T) {
	form := url.Values{"name": {"apple"}, "tag": {"red", "fresh"}}
	r := httptest.NewRequest(http.MethodPost, "/svc/Cart/add?tag=sale&qty=3", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p, err := Parse(r, Options{})
	require.NoError(t, err)
	defer p.Dispose()

	assert.Equal(t, "apple", p.Get("name"))
	assert.Equal(t, []string{"sale", "red", "fresh"}, p.Values("tag"))
	assert.Equal(t, "3", p.Query().Get("qty"))
	assert.Equal(t, []string{"name", "qty", "tag"}, p.Keys())
	assert.Equal(t, "application/x-www-form-urlencoded", p.ContentType())
	assert.Nil(t, p.Body())
}

func TestParseRawBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/svc/Cart/add", strings.NewReader(`{"name":"apple"}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")

	p, err := Parse(r, Options{MaxBodySize: 1024})
	require.NoError(t, err)

	assert.Equal(t, "application/json", p.ContentType())
	assert.JSONEq(t, `{"name":"apple"}`, string(p.Body()))
}

func TestParseBodyTooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/svc/Cart/add", strings.NewReader(strings.Repeat("x", 64)))
	r.Header.Set("Content-Type", "text/plain")

	_, err := Parse(r, Options{MaxBodySize: 16})
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestParseMultipartAndDispose(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "report"))
	fw, err := mw.CreateFormFile("upload", "data.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/svc/Files/put", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	p, err := Parse(r, Options{MaxMemory: 1 << 10})
	require.NoError(t, err)

	assert.Equal(t, "report", p.Get("title"))
	fh := p.File("upload")
	require.NotNil(t, fh)
	assert.Equal(t, "data.csv", fh.Filename)
	assert.Len(t, p.Files("upload"), 1)
	assert.Nil(t, p.File("missing"))

	require.NoError(t, p.Dispose())
	require.NoError(t, p.Dispose())
}

func TestParseMalformedContentType(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/svc/Cart/add", strings.NewReader("x"))
	r.Header.Set("Content-Type", "multipart/form-data; boundary=\"unterminated")

	_, err := Parse(r, Options{})
	require.ErrorIs(t, err, ErrMalformedRequest)
}

func TestStringLengthBounds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/svc/Cart/add?code=abcdef", nil)
	p, err := Parse(r, Options{})
	require.NoError(t, err)

	v, err := p.String("code", 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", v)

	_, err = p.String("code", 1, 3, "")
	assert.ErrorIs(t, err, ErrLength)

	v, err = p.String("missing", 1, 3, "dflt")
	require.NoError(t, err)
	assert.Equal(t, "dflt", v)
}
