package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"crackdetector/internal/dto"
	"crackdetector/internal/logger"
)

// RecoverMiddleware turns a handler panic into a 500 JSON error for that request only.
func RecoverMiddleware(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Error("Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Internal server error"})
		}()

		next.ServeHTTP(w, r)
	})
}
