package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noticedesk/notice-intake-api/internal/dto"
	"github.com/noticedesk/notice-intake-api/internal/models"
)

type stubEntityRepository struct {
	entities map[string]*models.Entity
}

func (s *stubEntityRepository) FindByID(ctx context.Context, id string) (*models.Entity, error) {
	if e, ok := s.entities[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func TestResolveRolesExistingEntity(t *testing.T) {
	repo := &stubEntityRepository{entities: map[string]*models.Entity{
		"e1": {ID: "e1", Name: "Acme Rights"},
	}}
	resolver := NewEntityResolver(repo, nil)
	verrs := NewValidationErrors()

	roles, err := resolver.ResolveRoles(context.Background(), []dto.EntityRoleSubmission{
		{Role: "sender", EntityID: "e1"},
	}, &models.JWTClaims{}, verrs)
	require.NoError(t, err)
	require.True(t, verrs.Empty())
	require.Len(t, roles, 1)
	assert.Equal(t, models.EntityRoleSender, roles[0].Role)
	assert.Equal(t, "e1", roles[0].EntityID)
	assert.Equal(t, "Acme Rights", roles[0].Entity.Name)
}

func TestResolveRolesInlineEntity(t *testing.T) {
	resolver := NewEntityResolver(&stubEntityRepository{}, nil)
	verrs := NewValidationErrors()

	roles, err := resolver.ResolveRoles(context.Background(), []dto.EntityRoleSubmission{
		{Role: "recipient", Entity: &dto.EntitySubmission{Name: "Hosting Co", Kind: "organization", Email: "abuse@hosting.example"}},
	}, &models.JWTClaims{}, verrs)
	require.NoError(t, err)
	require.True(t, verrs.Empty())
	require.Len(t, roles, 1)
	assert.Empty(t, roles[0].EntityID)
	assert.Equal(t, "Hosting Co", roles[0].Entity.Name)
	assert.Equal(t, models.EntityKindOrganization, roles[0].Entity.Kind)
}

func TestResolveRolesCollectsProblems(t *testing.T) {
	resolver := NewEntityResolver(&stubEntityRepository{}, nil)
	verrs := NewValidationErrors()

	roles, err := resolver.ResolveRoles(context.Background(), []dto.EntityRoleSubmission{
		{Role: "witness", EntityID: "e1"},
		{Role: "sender", EntityID: "missing"},
		{Role: "recipient"},
		{Role: "principal", Entity: &dto.EntitySubmission{}},
	}, &models.JWTClaims{}, verrs)
	require.NoError(t, err)
	assert.Empty(t, roles)

	details := verrs.Details()
	assert.Contains(t, details["entity_notice_roles[0]"][0], "unknown role")
	assert.Contains(t, details["entity_notice_roles[1]"][0], "not found")
	assert.Contains(t, details["entity_notice_roles[2]"][0], "required")
	assert.Contains(t, details["entity_notice_roles[3]"][0], "name is required")
}

func TestResolveRolesDefaultsSubmitterAndRecipient(t *testing.T) {
	repo := &stubEntityRepository{entities: map[string]*models.Entity{
		"linked": {ID: "linked", Name: "Caller Org"},
	}}
	resolver := NewEntityResolver(repo, nil)
	claims := &models.JWTClaims{UserID: "u1", EntityID: "linked"}

	verrs := NewValidationErrors()
	roles, err := resolver.ResolveRoles(context.Background(), nil, claims, verrs)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, models.EntityRoleSubmitter, roles[0].Role)
	assert.Equal(t, models.EntityRoleRecipient, roles[1].Role)
	assert.Equal(t, "linked", roles[0].EntityID)
	assert.Equal(t, "linked", roles[1].EntityID)
}

func TestResolveRolesNoRecipientDefaultWhenSubmitterPresent(t *testing.T) {
	repo := &stubEntityRepository{entities: map[string]*models.Entity{
		"linked": {ID: "linked", Name: "Caller Org"},
		"e1":     {ID: "e1", Name: "Acme Rights"},
	}}
	resolver := NewEntityResolver(repo, nil)
	claims := &models.JWTClaims{UserID: "u1", EntityID: "linked"}

	verrs := NewValidationErrors()
	roles, err := resolver.ResolveRoles(context.Background(), []dto.EntityRoleSubmission{
		{Role: "submitter", EntityID: "e1"},
	}, claims, verrs)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, models.EntityRoleSubmitter, roles[0].Role)
}

func TestResolveRolesRecipientKeptWhenSupplied(t *testing.T) {
	repo := &stubEntityRepository{entities: map[string]*models.Entity{
		"linked": {ID: "linked", Name: "Caller Org"},
		"e2":     {ID: "e2", Name: "Hosting Co"},
	}}
	resolver := NewEntityResolver(repo, nil)
	claims := &models.JWTClaims{UserID: "u1", EntityID: "linked"}

	verrs := NewValidationErrors()
	roles, err := resolver.ResolveRoles(context.Background(), []dto.EntityRoleSubmission{
		{Role: "recipient", EntityID: "e2"},
	}, claims, verrs)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, models.EntityRoleRecipient, roles[0].Role)
	assert.Equal(t, "e2", roles[0].EntityID)
	assert.Equal(t, models.EntityRoleSubmitter, roles[1].Role)
	assert.Equal(t, "linked", roles[1].EntityID)
}

func TestResolveRolesNoDefaultWithoutLinkedEntity(t *testing.T) {
	resolver := NewEntityResolver(&stubEntityRepository{}, nil)
	verrs := NewValidationErrors()

	roles, err := resolver.ResolveRoles(context.Background(), nil, &models.JWTClaims{UserID: "u1"}, verrs)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.True(t, verrs.Empty())
}
