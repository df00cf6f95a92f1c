// Package credgate is an embeddable credential-and-session lifecycle engine.
//
// It authenticates username/password pairs against a caller-supplied
// credential store, tracks failed-attempt counts leading to account
// suspension, issues and redeems single-use time-boxed password-reset
// tokens, gates access to protected routes based on session validity, and
// periodically reaps expired session records.
//
// The engine owns the state machine; persistence is delegated to abstract
// stores implemented by the caller ([CredentialStore], [RoleStore]) and to a
// Redis-backed session store. Construction goes through [Builder]:
//
//	engine, err := credgate.New().
//		WithRedis(rdb).
//		WithCredentialStore(creds).
//		WithRoleStore(roles).
//		Build()
package credgate
