/*
Package registry holds the artifact-kind graph and resolves it.

A Graph is constructed once at startup (from a kinds table or from the
persisted index) and passed explicitly to every component that needs it.
Registration order matters only as the stable tie-break of the resolver:
the same graph always linearizes the same way.

Cycles are not rejected when edges are added. They are detected by the
Resolver, so kinds can be registered in any order.
*/
package registry
