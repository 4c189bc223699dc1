package errcode

// Code is a stable error identifier shared by the bus engines, the
// serial transport and the scheduler.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Hardware did not reach the expected state on this poll. Always transient.
	NotReady Code = "not_ready"

	// Buffer misuse. These indicate caller sizing or sequencing bugs.
	BufferFull      Code = "buffer_full"
	BufferEmpty     Code = "buffer_empty"
	IndexOutOfRange Code = "index_out_of_range"

	// A bounded retry gave up. The bus may be wedged or the device absent.
	RetryExhausted Code = "retry_exhausted"

	Busy          Code = "busy"
	InvalidParams Code = "invalid_params"
	Timeout       Code = "timeout"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil && e.Err != error(e.C) {
		s += " (" + e.Err.Error() + ")"
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.RetryExhausted) match a wrapped E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap returns an *E for op with code c and cause err.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	for err != nil {
		if x, ok := err.(coder); ok {
			return x.Code()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
		if c, ok := err.(Code); ok {
			return c
		}
	}
	return Error
}

// Transient reports whether err is a NotReady condition worth polling again.
func Transient(err error) bool { return Of(err) == NotReady }
