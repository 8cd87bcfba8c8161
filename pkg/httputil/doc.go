// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// path/query parameter parsing, and common HTTP middleware.
//
// # Responses
//
//	httputil.WriteSuccess(w, collaborators)
//	httputil.WriteValidationError(w, "email is required")
//	httputil.WriteForbidden(w, "not permitted")
//
// Internal errors are written as a generic message; the underlying error is
// logged, never echoed to the client.
//
// # Requests
//
//	var req InviteRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
//
// # Middleware
//
// RequestIDMiddleware, LoggingMiddleware, RecoveryMiddleware, and
// MaxBytesMiddleware compose with Chain:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
package httputil
