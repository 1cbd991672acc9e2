// Package sessions holds the per-connection authentication state.
//
// A Session is created unauthenticated for every new connection. The
// transport forwards AUTHENTICATION_REQUEST to InitAuthentication and
// AUTHENTICATION_DATA to FinishAuthentication; both return an
// action.Result that is sent back verbatim. Once authenticated the
// Session's Identity is fixed for its lifetime and further attempts are
// rejected with "Already authenticated".
package sessions
