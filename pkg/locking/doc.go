/*
Package locking serializes writers to one dataset.

A Manager keeps one local lock per key, reference counted so idle keys are
garbage collected, and optionally a distributed lock (see ports.DistributedLocker)
so that several processes sharing the same storage also exclude each other.

Acquisition is bounded: TryWithLock gives up after a timeout with a
*domain.LockBusyError instead of blocking forever. Nothing is retried; the
caller decides whether to come back later.
*/
package locking
