package session

import (
	"context"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/records"
	"landing/internal/services"
)

// RecordLookup reads durable completion records.
type RecordLookup interface {
	GetByID(ctx context.Context, landingID string) (*records.Landing, error)
}

// BundleLookup reads owner-scoped bundles.
type BundleLookup interface {
	Get(landingID string, ownerID int64) (*artifact.Bundle, error)
}

// StatusService answers status queries for live and finished jobs.
type StatusService struct {
	registry *Registry
	records  RecordLookup
	bundles  BundleLookup
}

// NewStatusService constructs a status service. records may be nil.
func NewStatusService(registry *Registry, recs RecordLookup, bundles BundleLookup) *StatusService {
	return &StatusService{registry: registry, records: recs, bundles: bundles}
}

// Status reports where landingID stands for ownerID. The live session wins
// for progress. Without one, a durable record or a bundle on disk means the
// job completed. With neither the job is reported as expired so the caller
// knows to start again, which is distinct from an ownership mismatch.
func (s *StatusService) Status(ctx context.Context, landingID string, ownerID int64) (api.LandingStatus, error) {
	if err := artifact.ValidateLandingID(landingID); err != nil {
		return api.LandingStatus{}, err
	}
	if err := artifact.ValidateOwnerID(ownerID); err != nil {
		return api.LandingStatus{}, err
	}

	if sess, ok := s.registry.Get(landingID); ok {
		if sess.OwnerID != ownerID {
			return api.LandingStatus{}, notFound()
		}
		return api.LandingStatus{
			LandingID: sess.ID,
			State:     string(sess.State),
			Progress:  sess.Progress,
			Message:   sess.Message,
			Source:    api.StatusSourceLive,
			Error:     sess.Error,
			ErrorCode: sess.ErrorCode,
			UpdatedAt: api.FormatTime(sess.UpdatedAt),
		}, nil
	}

	if s.records != nil {
		rec, err := s.records.GetByID(ctx, landingID)
		if err != nil {
			return api.LandingStatus{}, services.Wrap(services.ErrTransient, "status", "record lookup", "read landing record", err)
		}
		if rec != nil {
			if rec.OwnerID != ownerID {
				return api.LandingStatus{}, notFound()
			}
			return completeStatus(landingID, api.StatusSourceRecord, api.FormatTime(rec.CompletedAt)), nil
		}
	}

	if s.bundles != nil {
		bundle, err := s.bundles.Get(landingID, ownerID)
		if err != nil {
			return api.LandingStatus{}, err
		}
		if bundle != nil {
			return completeStatus(landingID, api.StatusSourceBundle, api.FormatTime(bundle.Metadata.CompletedAt)), nil
		}
	}

	return api.LandingStatus{}, services.Wrap(services.ErrSessionExpired, "status", "lookup",
		"no live session or completed landing; start the generation again", nil)
}

func completeStatus(id, source, updated string) api.LandingStatus {
	return api.LandingStatus{
		LandingID: id,
		State:     string(StateComplete),
		Progress:  100,
		Source:    source,
		UpdatedAt: updated,
	}
}

func notFound() error {
	return services.Wrap(services.ErrNotFound, "status", "lookup", "landing not found", nil)
}
