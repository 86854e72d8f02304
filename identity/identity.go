// Package identity implements the IdentityResolver contract of spec.md
// §6: mapping an incoming (SenderCompID, TargetCompID) pair to an
// authorized SessionConfig, or a Denied verdict.
//
// Grounded on the teacher's registry package (registry/registry.go,
// registry/etcd_registry.go): same etcd-backed key/value shape, renamed
// from service discovery's Register/Discover/Watch to
// Provision/Resolve/Watch over CompID-pair keys. Unlike service
// instances, a counterparty's authorization doesn't expire on its own —
// there is no TTL lease here, an operator revokes with Revoke.
package identity

import "context"

// SessionConfig is what a resolved identity pair is authorized to do.
type SessionConfig struct {
	HeartbeatInterval int  // seconds, per spec.md §4.5
	ResetOnLogon      bool // stored only; session.handleLogon honors ResetSeqNumFlag=Y for every pair regardless
}

// Denied is returned by Resolve when the pair has no provisioned entry.
var Denied = SessionConfig{}

// Resolver is the IdentityResolver contract. Implementations must be
// inexpensive and reentrant, per spec.md §5 — the acceptor calls Resolve
// on every incoming Logon before any Session is created.
type Resolver interface {
	// Resolve returns the SessionConfig authorized for (sender, target),
	// or ok=false if the pair is not provisioned.
	Resolve(ctx context.Context, sender, target string) (cfg SessionConfig, ok bool, err error)

	// Provision authorizes (sender, target) with the given configuration,
	// replacing any existing entry.
	Provision(ctx context.Context, sender, target string, cfg SessionConfig) error

	// Revoke removes authorization for (sender, target).
	Revoke(ctx context.Context, sender, target string) error

	// Watch emits the full set of provisioned pairs whenever it changes.
	Watch(ctx context.Context) <-chan []Pair
}

// Pair is one provisioned (sender, target) entry, as emitted by Watch.
type Pair struct {
	Sender string
	Target string
	Config SessionConfig
}

func pairKey(sender, target string) string {
	return "/fixcore/identity/" + sender + "/" + target
}
