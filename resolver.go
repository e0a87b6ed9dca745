package netapi

import (
	"fmt"
	"strings"

	"github.com/MrEthical07/netapi/registry"
)

// resolve maps "Owner/operation" to an exposed operation. Leading segments
// beyond the last two are ignored; unexposed operations are reported exactly
// like missing ones.
func (e *Engine) resolve(path string) (*registry.Service, *registry.Operation, error) {
	trimmed := strings.Trim(path, "/")
	segments := strings.Split(trimmed, "/")
	if trimmed == "" || len(segments) < 2 {
		return nil, nil, dispatchError(CodeRoutingError, fmt.Sprintf("invalid request path %q, expected Owner/operation", path), nil)
	}

	opName := segments[len(segments)-1]
	short := segments[len(segments)-2]
	if opName == "" || short == "" {
		return nil, nil, dispatchError(CodeRoutingError, fmt.Sprintf("invalid request path %q, expected Owner/operation", path), nil)
	}

	qualified := e.qualify(short)
	svc, ok := e.services.Lookup(qualified)
	if !ok {
		return nil, nil, dispatchError(CodeUnknownEndpoint, fmt.Sprintf("service %s not found", qualified), nil)
	}
	op, ok := svc.Exposed(opName)
	if !ok {
		return nil, nil, dispatchError(CodeUnknownEndpoint, fmt.Sprintf("operation %s.%s not found", qualified, opName), nil)
	}
	return svc, op, nil
}

func (e *Engine) qualify(short string) string {
	if e.config.ServicePath == "" {
		return short
	}
	return e.config.ServicePath + "." + short
}
