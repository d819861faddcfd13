package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noticedesk/notice-intake-api/internal/dto"
	"github.com/noticedesk/notice-intake-api/internal/models"
	appErrors "github.com/noticedesk/notice-intake-api/pkg/errors"
)

type resolverEntityRepository interface {
	FindByID(ctx context.Context, id string) (*models.Entity, error)
}

// EntityResolver turns role submissions into notice role records. An
// entity reference resolves against storage; inline attributes become
// a new entity that is persisted with the notice's atomic write.
type EntityResolver struct {
	repo   resolverEntityRepository
	logger *zap.Logger
}

// NewEntityResolver constructs an EntityResolver instance.
func NewEntityResolver(repo resolverEntityRepository, logger *zap.Logger) *EntityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityResolver{repo: repo, logger: logger}
}

// ResolveRoles resolves every role submission, recording per-role
// problems in verrs so the caller sees all of them at once. When the
// submitter role is omitted and the caller has a linked entity, the
// submitter (and, if also omitted, the recipient) defaults to that
// entity. Only storage failures return a hard error.
func (r *EntityResolver) ResolveRoles(ctx context.Context, submissions []dto.EntityRoleSubmission, claims *models.JWTClaims, verrs *ValidationErrors) ([]models.EntityNoticeRole, error) {
	roles := make([]models.EntityNoticeRole, 0, len(submissions)+2)
	seen := make(map[models.EntityRole]bool)

	for i, sub := range submissions {
		field := fmt.Sprintf("entity_notice_roles[%d]", i)

		role := models.EntityRole(sub.Role)
		if _, ok := models.KnownEntityRoles[role]; !ok {
			verrs.Add(field, fmt.Sprintf("unknown role name %q", sub.Role))
			continue
		}

		switch {
		case sub.EntityID != "":
			entity, err := r.lookup(ctx, sub.EntityID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					verrs.Add(field, fmt.Sprintf("entity %s not found", sub.EntityID))
					continue
				}
				return nil, err
			}
			roles = append(roles, models.EntityNoticeRole{EntityID: entity.ID, Role: role, Entity: entity})
		case sub.Entity != nil:
			if sub.Entity.Name == "" {
				verrs.Add(field, "entity name is required")
				continue
			}
			roles = append(roles, models.EntityNoticeRole{Role: role, Entity: newInlineEntity(sub.Entity)})
		default:
			verrs.Add(field, "entity reference or inline entity required")
			continue
		}
		seen[role] = true
	}

	if !seen[models.EntityRoleSubmitter] && claims != nil && claims.EntityID != "" {
		entity, err := r.lookup(ctx, claims.EntityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				verrs.Add("entity_notice_roles", "linked entity not found")
				return roles, nil
			}
			return nil, err
		}
		roles = append(roles, models.EntityNoticeRole{EntityID: entity.ID, Role: models.EntityRoleSubmitter, Entity: entity})
		if !seen[models.EntityRoleRecipient] {
			roles = append(roles, models.EntityNoticeRole{EntityID: entity.ID, Role: models.EntityRoleRecipient, Entity: entity})
		}
	}

	return roles, nil
}

func (r *EntityResolver) lookup(ctx context.Context, id string) (*models.Entity, error) {
	entity, err := r.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch entity")
	}
	return entity, nil
}

func newInlineEntity(sub *dto.EntitySubmission) *models.Entity {
	kind := models.EntityKind(sub.Kind)
	if kind != models.EntityKindIndividual && kind != models.EntityKindOrganization {
		kind = models.EntityKindOrganization
	}
	return &models.Entity{
		Name:        sub.Name,
		Kind:        kind,
		AddressLine: sub.AddressLine,
		City:        sub.City,
		State:       sub.State,
		Zip:         sub.Zip,
		CountryCode: sub.CountryCode,
		Phone:       sub.Phone,
		Email:       sub.Email,
		URL:         sub.URL,
	}
}
