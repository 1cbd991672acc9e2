// Package resources routes client actions to the server's resources.
//
// An action names a Path, a Verb and an optional JSON payload. The Router
// resolves the first path segment to a registered Resource, asks it for
// the Method bound to the verb at the remaining sub-path, checks the
// method's SecurityRequirement against the caller, decodes the payload
// into the method's input type and runs the handler. Every outcome,
// including failures at each of those steps, is an action.Result:
//
//	unknown path or sub-path     NOT_FOUND "Resource not found"
//	unsupported verb             ACTION_NOT_ALLOWED "Method not supported by this resource"
//	requirement not met          UNAUTHORIZED
//	payload does not decode      BAD_REQUEST
//	handler returns *Error       that error's status and message
//	any other handler error      INTERNAL_ERROR
//
// Methods are registered explicitly through typed constructors:
//
//	r := resources.NewRouter(adminStore)
//	r.Register("console", resources.NewSimpleResource(
//		resources.NewVoidMethod(resources.POST, resources.RequireAuth,
//			func(ctx context.Context, c *resources.Call, cmd string) error {
//				return exec.Execute(ctx, cmd, c.Identity())
//			}),
//	))
//
// Each method's input type is reflected into a JSON Schema that the
// catalog resource (NewCatalogResource) publishes to clients.
package resources
