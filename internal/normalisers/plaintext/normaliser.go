package plaintext

import (
	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ normalisers.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text files. Content passes through
// untouched.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt", ".text", ".log"}
}

// Normalise passes the raw content through as-is. Plain text carries
// no title; the caller derives one from the filename.
func (n *Normaliser) Normalise(raw []byte) (*normalisers.Result, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	return &normalisers.Result{
		Content: string(raw),
	}, nil
}
