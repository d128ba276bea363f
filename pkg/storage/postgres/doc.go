// Package postgres manages the platform's database and cache connections.
//
// # Overview
//
// ConnectionManager owns the PostgreSQL primary plus optional read replicas
// with round-robin read routing, background replica health checks, and pool
// statistics for metrics export. RedisClient wraps the shared Redis
// connection used by the notification unread-count cache; Redis is optional
// and callers must tolerate its absence.
//
// # Usage
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		PrimaryURL:  cfg.Database.URL,
//		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
//		MaxConns:    cfg.Database.MaxConns,
//		MinConns:    cfg.Database.MinConns,
//		Timeout:     cfg.Database.Timeout,
//	}, logger)
//
// Writes go through cm.Primary(). Read-only services query through
// cm.QueryContext, which round-robins across replicas and falls back to
// the primary when none are configured.
package postgres
