package sqlerr

import (
	"errors"
	"fmt"
)

// Code identifies the category of a translation failure. Compare errors
// against the Err* variables with errors.Is rather than switching on Code.
type Code string

const (
	CodeUnknown              Code = ""
	CodeArgumentCount        Code = "ArgumentCount"
	CodeTypeMismatch         Code = "TypeMismatch"
	CodeUnknownModifier      Code = "UnknownModifier"
	CodeMissingSubstitution  Code = "MissingSubstitution"
	CodeRecursion            Code = "Recursion"
	CodeMalformedConditional Code = "MalformedConditional"
	CodeMalformedTemplate    Code = "MalformedTemplate"
	CodeIncomplete           Code = "Incomplete"
	CodeRendered             Code = "Rendered"
)

/*
Sentinels for errors.Is:

	if errors.Is(err, sqlerr.ErrArgumentCount) {
		// too few or too many arguments
	}

Errors returned by this module carry the offending token and position, so
they never compare equal with ==.
*/
var (
	ErrArgumentCount        = Err{Code: CodeArgumentCount, Cause: errors.New("argument count mismatch")}
	ErrTypeMismatch         = Err{Code: CodeTypeMismatch, Cause: errors.New("value incompatible with modifier")}
	ErrUnknownModifier      = Err{Code: CodeUnknownModifier, Cause: errors.New("unknown modifier")}
	ErrMissingSubstitution  = Err{Code: CodeMissingSubstitution, Cause: errors.New("missing substitution")}
	ErrRecursion            = Err{Code: CodeRecursion, Cause: errors.New("expansion depth exceeded")}
	ErrMalformedConditional = Err{Code: CodeMalformedConditional, Cause: errors.New("malformed conditional section")}
	ErrMalformedTemplate    = Err{Code: CodeMalformedTemplate, Cause: errors.New("malformed template")}
	ErrIncomplete           = Err{Code: CodeIncomplete, Cause: errors.New("incomplete statement")}
	ErrRendered             = Err{Code: CodeRendered, Cause: errors.New("builder already rendered")}
)

// Err is the error type returned by the translator, the escaper, the
// substitution table and the fluent builder.
type Err struct {
	Code  Code
	Token string // offending token, e.g. "%ex" or ":prefix:"
	Pos   int    // byte offset in the joined template, -1 when unknown
	Cause error
}

// New builds an Err with a formatted cause and no position.
func New(code Code, format string, args ...any) Err {
	return Err{Code: code, Pos: -1, Cause: fmt.Errorf(format, args...)}
}

func (e Err) Error() string {
	msg := "[esql]"
	if e.Code != CodeUnknown {
		msg += " " + string(e.Code)
	}
	if e.Token != "" {
		msg += fmt.Sprintf(" at %s", e.Token)
		if e.Pos >= 0 {
			msg += fmt.Sprintf(" (offset %d)", e.Pos)
		}
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches on Code, falling back on the cause chain.
func (e Err) Is(other error) bool {
	if o, ok := other.(Err); ok {
		return o.Code == e.Code
	}
	return e.Cause != nil && errors.Is(e.Cause, other)
}

func (e Err) Unwrap() error {
	return e.Cause
}

// At attaches the token and position unless they are already set. Errors
// bubbling up from nested expansions keep their innermost location.
func (e Err) At(token string, pos int) Err {
	if e.Token == "" {
		e.Token = token
		e.Pos = pos
	}
	return e
}

// Locate annotates err with token and pos when it is an Err; other errors
// are wrapped as CodeUnknown so callers still see where they happened.
func Locate(err error, token string, pos int) error {
	if err == nil {
		return nil
	}
	var e Err
	if errors.As(err, &e) {
		return e.At(token, pos)
	}
	return Err{Token: token, Pos: pos, Cause: err}
}
