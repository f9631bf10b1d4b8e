// Package userstore implements user.Repository on PostgreSQL (pgx) and in
// memory, plus a circuit breaker that guards either one.
package userstore
