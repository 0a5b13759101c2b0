package genome

import (
	"context"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

// Service abstracts listing so tests and remote mounts can substitute a backend.
type Service interface {
	// List returns the objects at location; for a directory the first object is the directory itself.
	List(ctx context.Context, location string) ([]storage.Object, error)
	// Exists reports whether location exists.
	Exists(ctx context.Context, location string) (bool, error)
}

// afsService is a Service implemented using github.com/viant/afs
type afsService struct {
	svc afs.Service
}

// NewAFS constructs a Service backed by the default AFS service.
func NewAFS() Service {
	return &afsService{svc: afs.New()}
}

func (a *afsService) List(ctx context.Context, location string) ([]storage.Object, error) {
	return a.svc.List(ctx, location)
}

func (a *afsService) Exists(ctx context.Context, location string) (bool, error) {
	return a.svc.Exists(ctx, location)
}
