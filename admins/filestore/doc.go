// Package filestore persists the admin set as a flat JSON array in a
// single file, conventionally serverAdmins.json in the server's home
// directory:
//
//	[
//	  "q2X...thumbprint-1",
//	  "Zs4...thumbprint-2"
//	]
//
// Writes replace the file atomically. Watch reports external edits so an
// operator can change the list without restarting the server:
//
//	fs := filestore.New(filepath.Join(home, filestore.DefaultFileName))
//	store := admins.NewStore(fs)
//	_ = store.Load(ctx)
//	go fs.Watch(ctx, func(ctx context.Context) { _ = store.Load(ctx) })
package filestore
