package genotype

import (
	"errors"
	"fmt"
)

var (
	ErrMaxNodes        = errors.New("hidden node limit exceeded")
	ErrDisconnected    = errors.New("output group unreachable from input group")
	ErrGroupSize       = errors.New("group size does not match config")
	ErrRuleNotAllowed  = errors.New("update rule not allowed")
	ErrBiasBounds      = errors.New("bias outside node bias bound")
	ErrActivationRange = errors.New("neuron bounds outside activation range")
	ErrStrengthBounds  = errors.New("connection strength outside bounds")
	ErrSelfConnection  = errors.New("self connection not allowed")
	ErrDanglingGene    = errors.New("connection references unknown node")
	ErrDuplicateGene   = errors.New("duplicate gene")
)

// ConfigurationError is returned before any genome or population is built.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// DecodeError reports a genome that cannot become a network. Err is one of
// the sentinel errors above.
type DecodeError struct {
	GenomeID string
	Detail   string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("decode genome %s: %v", e.GenomeID, e.Err)
	}
	return fmt.Sprintf("decode genome %s: %v: %s", e.GenomeID, e.Err, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
