package redis

import "strings"

const defaultNamespace = "shop"

// keyspace prefixes every key so several environments can share one Redis.
type keyspace string

func (k keyspace) key(kind string, parts ...string) string {
	ns := strings.TrimSpace(string(k))
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

func (k keyspace) IdempotencyKey(scope, id string) string { return k.key("idempotency", scope, id) }

// RateLimitKey names a fixed-window counter.
func (k keyspace) RateLimitKey(scope string) string { return k.key("rate_limit", scope) }

// CounterKey names a long-lived counter such as the order number sequence.
func (k keyspace) CounterKey(name string) string { return k.key("counter", name) }

// LockKey names a worker lock.
func (k keyspace) LockKey(name string) string { return k.key("lock", name) }
