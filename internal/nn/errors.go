package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// Refinement loss errors, matched with errors.Is.
var (
	// ErrShapeMismatch reports inputs or collaborator outputs with incompatible shapes.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrNumericDomain reports a zero-norm embedding or a similarity of 1,
	// where cosine similarity or -log(1 - s) is undefined.
	ErrNumericDomain = errors.New("numeric domain error")

	// ErrMatchLossUndefined reports a RefinementLoss built without a match loss.
	// The match term has no canonical formula, so callers must supply one.
	ErrMatchLossUndefined = errors.New("incomplete specification: match loss is undefined")

	// ErrMissingComponent reports a nil encoder or mask generator.
	ErrMissingComponent = errors.New("missing component")
)

// ShapeError describes which operand had the wrong shape.
type ShapeError struct {
	Op      string       // Operation that rejected the input (e.g. "refinement_loss")
	Operand string       // Offending operand (e.g. "mask", "background_prompt")
	Got     tensor.Shape // Actual shape
	Want    tensor.Shape // Expected shape, nil when only the rank or a single dim is constrained
	Details string       // Additional details
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s %v", e.Op, ErrShapeMismatch, e.Operand, e.Got)
	if e.Want != nil {
		msg += fmt.Sprintf(", want %v", e.Want)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// DomainError describes the batch element whose value left the valid domain.
type DomainError struct {
	Op      string  // "cosine_similarity" or "refinement_loss"
	Index   int     // Batch index of the offending element
	Value   float64 // Offending value (norm or similarity)
	Details string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s at batch index %d (value %g): %s", e.Op, ErrNumericDomain, e.Index, e.Value, e.Details)
}

// Unwrap returns ErrNumericDomain.
func (e *DomainError) Unwrap() error {
	return ErrNumericDomain
}
