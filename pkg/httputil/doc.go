// Package httputil holds the JSON response helpers, query parsing and
// middleware shared by the HTTP API.
//
// Errors carrying an indexerr.Kind map onto status codes with WriteError:
//
//	rec, err := svc.GetByFilename(ctx, name)
//	if err != nil {
//		httputil.WriteError(w, err) // 404 for KindNotFound, 400 for KindQuery
//		return
//	}
//
// Middleware composes with Chain:
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)
package httputil
