// Package redisstore implements admins.Backend on a Redis SET.
//
// Example:
//
//	backend, err := redisstore.New(ctx, redisstore.Config{RedisAddr: "localhost:6379"})
//	if err != nil { ... }
//	defer backend.Close()
//	store := admins.NewStore(backend)
package redisstore
