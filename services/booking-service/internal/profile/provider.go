// Package profile answers "is this tutor bookable" for the validator. The
// default provider reads the local directory table; deployments that split
// tutor profiles into their own service swap in the gRPC provider built
// with the protogen tag.
package profile

import (
	"context"

	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
)

type Provider interface {
	IsListed(ctx context.Context, tutorID string) (bool, error)
}

type dbProvider struct {
	tutors *storage.TutorRepository
}

func NewDBProvider(tutors *storage.TutorRepository) Provider {
	return &dbProvider{tutors: tutors}
}

func (p *dbProvider) IsListed(ctx context.Context, tutorID string) (bool, error) {
	return p.tutors.IsListed(ctx, tutorID)
}
