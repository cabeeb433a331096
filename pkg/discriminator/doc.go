// Package discriminator provides the built-in cache context providers that
// derive discriminator values from the current request.
//
// Providers read request-scoped state from context.Context. Attach the request
// with [WithRequest] (the middlewares.Scope middleware does it for you) and,
// when the application authenticates users, the caller with [WithPrincipal].
package discriminator
