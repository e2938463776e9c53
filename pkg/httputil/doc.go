// Package httputil provides HTTP helpers shared by the gateway: JSON
// envelopes, client address and session extraction, body peeking, and the
// generic middleware (request id, access log, panic recovery, CORS, content
// type and body size checks).
//
// Error responses always go through the apierror envelope:
//
//	httputil.WriteError(w, apierror.InvalidContentType)
//
// Middleware compose with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
