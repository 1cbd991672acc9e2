// Package admins maintains the set of identities allowed to perform
// administrative actions.
//
// A Store holds the set in memory and persists it through a Backend
// (see the filestore and redisstore subpackages). While the set is empty
// the store is in anonymous admin mode: every authenticated client passes
// HasAdminPermissions. Transports call AddFirstAdminIfNecessary after a
// successful handshake so the first client to connect becomes the first
// admin and closes that mode.
//
// Every mutation that changes membership is persisted (when auto-save is
// on) and then reported to change callbacks, in order, with the new
// sorted list. Persistence failures are logged and never roll back the
// in-memory change.
package admins
