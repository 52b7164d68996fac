package inproctwirp

import "context"

// noValuesContext wraps a context but prevents access to its values. When an
// in-process call hands the client's context to the server, cancellations and
// deadlines must propagate, but values must not: over a real transport the
// server would never see them, and code that worked in process would break
// the moment the two halves were deployed apart.
type noValuesContext struct {
	context.Context
}

func (ctx noValuesContext) Value(key any) any {
	return nil
}
