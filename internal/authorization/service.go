package authorization

import (
	"context"

	"github.com/smallbiznis/procura/internal/apperror"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

// Service is the RBAC guard. Denials are pure: nothing is written when a check fails.
type Service interface {
	Permits(role identitydomain.Role, object string, action string) bool
	Authorize(ctx context.Context, actor identitydomain.Actor, object string, action string) error
}

var ErrForbidden = apperror.Forbidden("forbidden", "You do not have permission to perform this action")
