package middleware

import (
	"context"

	"rentacar/internal/app/auth"
	"rentacar/internal/app/commands"
	"rentacar/internal/app/queries"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RoleRestricted marks messages that only callers holding a role may send.
type RoleRestricted interface {
	RequiredRole() string
}

// RoleAuthorizer checks RoleRestricted messages against the principal in ctx.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	restricted, ok := message.(RoleRestricted)
	if !ok || restricted.RequiredRole() == "" {
		return nil
	}
	p, ok := auth.FromContext(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}
	if !p.HasRole(restricted.RequiredRole()) {
		return auth.ErrForbidden
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
