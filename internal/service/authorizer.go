package service

import (
	"context"

	"labkiosk/internal/domain"

	"github.com/rs/zerolog"
)

// RoleAuthorizer отвечает на вопросы о ролях по данным users. Ошибка
// чтения трактуется как отсутствие ролей.
type RoleAuthorizer struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewRoleAuthorizer(repo domain.Repository, logger *zerolog.Logger) *RoleAuthorizer {
	return &RoleAuthorizer{repo: repo, logger: logger}
}

func (a *RoleAuthorizer) HasAnyRole(ctx context.Context, actorID int64, roles ...string) bool {
	actual, err := a.repo.GetUserRoles(ctx, actorID)
	if err != nil {
		a.logger.Warn().Err(err).Int64("actor_id", actorID).Msg("role lookup failed, denying")
		return false
	}
	for _, have := range actual {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
