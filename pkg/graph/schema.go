package graph

import "fmt"

// Redis key pattern helpers.
//
// Key pattern: discgraph:{namespace}:{kind}:{collection}:{id}

// NodeKey returns the Redis key for a node document.
// Pattern: discgraph:{ns}:node:{collection}:{key}
func NodeKey(namespace string, collection Collection, key string) string {
	return fmt.Sprintf("discgraph:%s:node:%s:%s", namespace, collection, key)
}

// MembersKey returns the Redis key for the set of document keys in a collection.
// Pattern: discgraph:{ns}:members:{collection}
func MembersKey(namespace string, collection Collection) string {
	return fmt.Sprintf("discgraph:%s:members:%s", namespace, collection)
}

// EdgeKey returns the Redis key for an edge document.
// Pattern: discgraph:{ns}:edge:{collection}:{edge_id}
func EdgeKey(namespace string, collection Collection, edgeID string) string {
	return fmt.Sprintf("discgraph:%s:edge:%s:%s", namespace, collection, edgeID)
}

// AdjacencyKey returns the Redis key for the outgoing-neighbour set of a node.
// Pattern: discgraph:{ns}:out:{collection}:{from_ref}
func AdjacencyKey(namespace string, collection Collection, fromRef string) string {
	return fmt.Sprintf("discgraph:%s:out:%s:%s", namespace, collection, fromRef)
}

// CollectionsKey returns the Redis key for the provisioned-collections registry.
// Pattern: discgraph:{ns}:collections
func CollectionsKey(namespace string) string {
	return fmt.Sprintf("discgraph:%s:collections", namespace)
}
