/*
Package session implements per-user session access and persistence orchestration.

It serializes traversal steps for the same user with a reference-counted
in-process mutex, optionally backed by a distributed lock so that several
replicas sharing one store never advance the same user concurrently.
*/
package session
