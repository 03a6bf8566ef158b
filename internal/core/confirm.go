package core

import "context"

// Confirmer answers yes/no questions on behalf of the user. Engines never
// ask directly; they return a proposal and the caller's Confirmer decides.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

var (
	// AlwaysYes accepts every proposal.
	AlwaysYes Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	// AlwaysNo declines every proposal.
	AlwaysNo Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
)
