// Package topology provides the contact graphs agents are placed on.
//
// A Topology is an undirected graph over nodes 0..Size()-1. Node i holds
// exactly the agent with id i, so the node/agent bijection is the identity.
// Topologies are immutable once built and safe to share between runs.
//
// Neighbor lists are returned in ascending order. Agents index into them
// with a random draw, so the order is part of the determinism contract:
// two runs with the same seed must see the same neighbor at the same index.
package topology
