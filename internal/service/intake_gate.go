package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noticedesk/notice-intake-api/internal/models"
	"github.com/noticedesk/notice-intake-api/pkg/config"
	appErrors "github.com/noticedesk/notice-intake-api/pkg/errors"
)

type gateTokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// IntakeGate decides whether a caller may submit a notice of a given
// type. Tokens may arrive in the Authorization header or inside the
// request body; the gate only sees the extracted string.
type IntakeGate struct {
	auth   gateTokenValidator
	config config.IntakeConfig
	logger *zap.Logger
}

// NewIntakeGate constructs an IntakeGate instance.
func NewIntakeGate(auth gateTokenValidator, cfg config.IntakeConfig, logger *zap.Logger) *IntakeGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeGate{auth: auth, config: cfg, logger: logger}
}

// Authorize validates the token and checks the caller's role against
// the submitted notice type. It returns the verified claims so the
// pipeline can default submitter and recipient from the caller's
// linked entity.
func (g *IntakeGate) Authorize(ctx context.Context, token, noticeType string) (*models.JWTClaims, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication token required")
	}

	claims, err := g.auth.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	effectiveType := NormalizeNoticeType(g.config, noticeType)

	switch claims.Role {
	case models.RoleAdmin, models.RoleAgent:
		return claims, nil
	case models.RoleSubmitter:
		for _, t := range g.config.SubmitterTypes {
			if t == effectiveType {
				return claims, nil
			}
		}
		g.logger.Warn("submitter blocked for notice type",
			zap.String("user_id", claims.UserID),
			zap.String("notice_type", effectiveType))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted to submit this notice type")
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted to submit notices")
	}
}

// NormalizeNoticeType maps a submitted type code onto the configured
// known set, matching case-insensitively. Unrecognized or empty values
// fall back to the default type rather than failing the request.
func NormalizeNoticeType(cfg config.IntakeConfig, raw string) string {
	for _, t := range cfg.KnownTypes {
		if strings.EqualFold(t, raw) {
			return t
		}
	}
	return cfg.DefaultType
}
