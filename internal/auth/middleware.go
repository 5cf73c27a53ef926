package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

const principalKey = "auth_principal"

// OwnershipLookup fetches the owner of a resource. Implementations return
// pgx.ErrNoRows when the resource does not exist. The gate calls it fresh
// on every per-resource request; verdicts are never cached.
type OwnershipLookup interface {
	FindOwner(ctx context.Context, resourceID string) (string, error)
}

// Gate runs the per-request authentication and authorization chain and
// short-circuits rejected requests before any business logic executes.
type Gate struct {
	resolver   *IdentityResolver
	engine     *Engine
	owners     OwnershipLookup
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewGate constructs the gate. dispatcher may be nil.
func NewGate(resolver *IdentityResolver, engine *Engine, owners OwnershipLookup, dispatcher events.Dispatcher, logger *zap.Logger) *Gate {
	return &Gate{resolver: resolver, engine: engine, owners: owners, dispatcher: dispatcher, logger: logger}
}

// Authenticate resolves the bearer token and attaches the principal.
// Every token-level failure collapses to one generic 401 for the client;
// the variant is logged and audited server-side only.
func (g *Gate) Authenticate(c *fiber.Ctx) error {
	principal, err := g.resolver.Resolve(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		if !isTokenFailure(err) {
			// revocation backend failure: fail closed but retryable
			g.logger.Error("identity resolution unavailable", zap.Error(err))
			return apperrors.NewUnavailable("authentication temporarily unavailable", err)
		}
		g.logger.Info("authentication rejected",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("reason", err.Error()),
		)
		g.publish(c, events.Event{
			Type: events.EventAuthRejected,
			Payload: events.AuthRejectedPayload{
				Method: c.Method(),
				Path:   c.Path(),
				Reason: err.Error(),
			},
		})
		return apperrors.NewUnauthorized("not authenticated")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// Authorize gates one operation. For per-resource operations it fetches
// the ownership fact from the ":id" route parameter, then consults the
// decision engine. Collection operations skip the lookup; the handler is
// responsible for scoping its query to the principal's subject id.
func (g *Gate) Authorize(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("not authenticated")
		}

		var ownership *Ownership
		resourceID := ""
		if op.TargetsResource {
			resourceID = c.Params("id")
			ownerID, err := g.owners.FindOwner(c.UserContext(), resourceID)
			switch {
			case err == nil:
				ownership = &Ownership{ResourceID: resourceID, OwnerID: ownerID}
			case errors.Is(err, pgx.ErrNoRows):
				ownership = nil
			default:
				return apperrors.MapError(err)
			}
		}

		verdict := g.engine.Decide(principal.Identity, op, ownership)
		if !verdict.Allowed {
			g.logger.Info("authorization denied",
				zap.String("subject_id", principal.Identity.SubjectID),
				zap.String("operation", op.Name),
				zap.String("resource_id", resourceID),
				zap.String("rule", verdict.Rule),
				zap.String("reason", string(verdict.Reason)),
			)
			g.publish(c, events.Event{
				Type:      events.EventAccessDenied,
				SubjectID: principal.Identity.SubjectID,
				Payload: events.AccessDeniedPayload{
					Method:     c.Method(),
					Path:       c.Path(),
					Operation:  op.Name,
					ResourceID: resourceID,
					Reason:     string(verdict.Reason),
					Rule:       verdict.Rule,
				},
			})
			if verdict.Reason == DenyNotFound || op.ConcealDenial {
				return apperrors.NewNotFound("task", map[string]any{"id": resourceID})
			}
			return apperrors.NewForbidden("forbidden")
		}

		return c.Next()
	}
}

// RequireRole restricts a route to principals holding one of the given
// roles. Used for administrative surfaces outside per-resource ownership.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("not authenticated")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Identity.Role]; !exists {
			return apperrors.NewForbidden("forbidden")
		}
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func (g *Gate) publish(c *fiber.Ctx, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	g.dispatcher.Publish(c.UserContext(), event)
}

func isTokenFailure(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrTokenRevoked)
}
