package registry

import (
	"github.com/okian/featreg/internal/adapters/repository"
	"github.com/okian/featreg/internal/domain/validation"
)

// Error kinds surfaced by the registry. They alias the kinds of the layers
// that detect them so errors.Is works against either name.
var (
	ErrNotFound      = repository.ErrNotFound
	ErrAlreadyExists = repository.ErrAlreadyExists
	ErrInvalidInput  = validation.ErrInvalidInput
	ErrInvalidField  = validation.ErrInvalidField
)
