// Package auth provides authentication for chat-gateway.
//
// # Authentication Method
//
// WebSocket clients authenticate with JWT tokens, signed with HS256 using
// the configured jwt_secret. The token is presented at connection upgrade
// via the "token" query parameter or the Authorization header.
//
// # Identity
//
// A verified token yields an Identity:
//
//   - UserID: the "sub" claim, the individual user
//   - CompanyID: the "com" claim, the tenant whose credit budget and rooms
//     the user belongs to
//
// Both claims are required; tokens missing either are rejected.
//
// # Context Propagation
//
// The verified Identity travels through handlers via context:
//
//	ctx = auth.WithIdentity(ctx, identity)
//	id, ok := auth.FromContext(ctx)
package auth
