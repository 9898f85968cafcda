package domain

import (
	"errors"
	"fmt"
)

// ErrNoData indica que la fuente externa no devolvió datos (corpus vacío, fetch fallido).
// Es distinto de un input malformado y de una estrategia imposible.
var ErrNoData = errors.New("no data available")

// ParseError es un input malformado: label de bucket, título de mercado o precio inválido.
// Siempre lleva el string ofensivo; nunca se sustituye por un valor por defecto.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// InfeasibleAllocationError: el coste del floor supera el capital, no se puede
// garantizar break-even en todos los buckets a la vez.
type InfeasibleAllocationError struct {
	Capital   float64
	FloorCost float64
}

func (e *InfeasibleAllocationError) Error() string {
	return fmt.Sprintf("infeasible allocation: combined prices exceed 100%% of capital (floor $%.2f > capital $%.2f, %.0f%%)",
		e.FloorCost, e.Capital, e.Ratio()*100)
}

// Ratio devuelve floorCost / capital (> 1 cuando es infeasible).
func (e *InfeasibleAllocationError) Ratio() float64 {
	if e.Capital <= 0 {
		return 0
	}
	return e.FloorCost / e.Capital
}

// FailureKind clasifica un error en las tres condiciones visibles al usuario.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoData
	FailureInfeasible
	FailureMalformed
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "ok"
	case FailureNoData:
		return "no data"
	case FailureInfeasible:
		return "infeasible"
	case FailureMalformed:
		return "malformed input"
	default:
		return "error"
	}
}

// Classify distingue "sin datos", "estrategia imposible" e "input malformado".
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var infeasible *InfeasibleAllocationError
	if errors.As(err, &infeasible) {
		return FailureInfeasible
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return FailureMalformed
	}
	if errors.Is(err, ErrNoData) {
		return FailureNoData
	}
	return FailureOther
}
