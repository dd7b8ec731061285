// Package graph defines the knowledge-graph model for program discriminators and the
// Store contract the ingestion core writes through, together with a Redis-backed
// implementation.
//
// # Overview
//
// The graph relates four node collections and three edge collections:
//
//	Programs ──HasDiscriminator──▶ Discriminators ──MappedTo──▶ Instructions
//	                                     │
//	                                     └──ContributedBy──▶ Users
//
// Every write is an overwrite keyed by the document key (nodes) or by the (from, to)
// pair (edges), so replaying an ingest never creates duplicates.
//
// # Redis Schema
//
// All keys are namespaced so several deployments can share one Redis server:
//
//	Nodes:       discgraph:{ns}:node:{collection}:{key}        (hash)
//	Members:     discgraph:{ns}:members:{collection}           (set of keys)
//	Edges:       discgraph:{ns}:edge:{collection}:{edge_id}    (hash: _from, _to)
//	Adjacency:   discgraph:{ns}:out:{collection}:{from_ref}    (set of to refs)
//	Collections: discgraph:{ns}:collections                    (hash: name -> kind)
//
// Collections are provisioned lazily by the first write that touches them;
// EnsureCollections registers them up front.
//
// # Usage Example
//
//	store, err := graph.NewRedisStore(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	views, err := store.QueryByProgramPrefix(ctx, "2heNN2tyetUwzRFjnLixpJYZC3TYF7rEEcxUivKoMAZg")
package graph
