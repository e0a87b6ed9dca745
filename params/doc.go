// Package params parses the raw data of one dispatch request: query string, form
// fields, multipart uploads, and the raw body.
//
// A [Params] value is scoped to a single request. Callers must call
// [Params.Dispose] on every exit path so that multipart temporary files are removed.
package params
