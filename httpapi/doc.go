// Package httpapi serves the resource router over plain HTTP.
//
// Each request is one action: the method is the verb and the path below
// <prefix>/resources/ is the resource path. A JSON body, if present, is
// the payload. The response body is always the JSON action result:
//
//	curl -X DELETE -H "Authorization: Bearer $TOKEN" \
//		http://localhost:8080/api/resources/serverAdmins/alice
//	{"status":"OK","data":["bob"]}
//
// Callers without an Authorization header are unauthenticated, which is
// enough for methods that admit any caller. Tokens are checked by an
// auth.Authenticator; a client authenticated on the persistent channel
// obtains one from the authToken resource.
package httpapi
