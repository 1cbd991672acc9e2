// Package serveradmins exposes the admin set as the "serverAdmins" resource.
package serveradmins

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ggoodman/webadmin-go/admins"
	"github.com/ggoodman/webadmin-go/events"
	"github.com/ggoodman/webadmin-go/identity"
	"github.com/ggoodman/webadmin-go/resources"
)

// Name is the resource path segment.
const Name = "serverAdmins"

// New returns the resource:
//
//	GET    serverAdmins       ANY            sorted admin identities
//	POST   serverAdmins       REQUIRE_ADMIN  add the identity in the payload
//	DELETE serverAdmins/<id>  REQUIRE_ADMIN  remove id
//
// POST and DELETE return the updated list.
func New(store *admins.Store) *resources.CollectionResource {
	return resources.NewCollectionResource(
		[]resources.Method{
			resources.NewParameterlessMethod(resources.GET, resources.RequireNone,
				func(ctx context.Context, c *resources.Call) ([]identity.Identity, error) {
					return store.Admins(), nil
				}, resources.WithDescription("List server administrators")),
			resources.NewMethod(resources.POST, resources.RequireAdmin,
				func(ctx context.Context, c *resources.Call, id identity.Identity) ([]identity.Identity, error) {
					id = identity.Identity(strings.TrimSpace(id.String()))
					if id.IsUnknown() {
						return nil, resources.BadRequest("Empty identity")
					}
					store.Add(ctx, id)
					return store.Admins(), nil
				}, resources.WithDescription("Add a server administrator")),
		},
		[]resources.Method{
			resources.NewParameterlessMethod(resources.DELETE, resources.RequireAdmin,
				func(ctx context.Context, c *resources.Call) ([]identity.Identity, error) {
					id := identity.Identity(strings.TrimSpace(c.Item))
					if id.IsUnknown() {
						return nil, resources.BadRequest("Empty identity")
					}
					if !store.Remove(ctx, id) {
						return nil, resources.ErrNotFound
					}
					return store.Admins(), nil
				}, resources.WithDescription("Remove a server administrator")),
		},
	)
}

// PublishChanges broadcasts every admin set change on hub as a
// serverAdmins event carrying the new list.
func PublishChanges(store *admins.Store, hub *events.Hub, log *slog.Logger) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	store.OnChange(func(ctx context.Context, list []identity.Identity) {
		ev, err := events.NewEvent(list, Name)
		if err != nil {
			log.ErrorContext(ctx, "serveradmins.publish.fail", slog.String("err", err.Error()))
			return
		}
		n := hub.Broadcast(ctx, ev)
		log.DebugContext(ctx, "serveradmins.publish", slog.Int("admins", len(list)), slog.Int("subscribers", n))
	})
}
