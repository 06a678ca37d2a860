package fvkit

// Emitter is the sink for extracted artifacts. Implementations must create any
// parent directories a path needs. Paths always use forward slashes and are
// relative to whatever root the emitter was configured with.
//
// Callers decide whether uniform (padding-only) content is worth emitting; an
// Emitter writes whatever it's given.
type Emitter interface {
	Emit(path string, data []byte) error
}

// EmitterFunc adapts a plain function to the [Emitter] interface.
type EmitterFunc func(path string, data []byte) error

func (f EmitterFunc) Emit(path string, data []byte) error {
	return f(path, data)
}
