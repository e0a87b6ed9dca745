package netapi

import (
	"fmt"
	"reflect"
)

// bind converts the request params into one argument per operation parameter.
// The first failure aborts; no partial argument list is returned.
func (e *Engine) bind(d *dispatch) (args []any, err error) {
	q := e.config.Query
	name, err := d.params.String(q.InputParam, 0, q.MaxFormatLen, e.converters.DefaultRequest())
	if err != nil {
		return nil, dispatchError(CodeParametersError, fmt.Sprintf("%s must be at most %d characters", q.InputParam, q.MaxFormatLen), err)
	}
	conv, ok := e.converters.Request(name)
	if !ok {
		return nil, dispatchError(CodeParametersError, fmt.Sprintf("unknown input format %q", name), nil)
	}

	var current reflect.Type
	defer func() {
		if rec := recover(); rec != nil {
			args = nil
			err = dispatchError(CodeParametersError, fmt.Sprintf("cannot bind parameter of type %s", current), fmt.Errorf("panic: %v", rec))
		}
	}()

	args = make([]any, len(d.op.Params))
	for i, t := range d.op.Params {
		current = t
		v, err := conv.Deserialize(d.params, t)
		if err != nil {
			return nil, dispatchError(CodeParametersError, fmt.Sprintf("cannot bind parameter %d of type %s", i, t), err)
		}
		args[i] = v
	}
	return args, nil
}
