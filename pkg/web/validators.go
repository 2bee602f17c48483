package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

// Between returns a ParamValidator accepting values in [lo, hi].
func Between(lo, hi int64) ParamValidator {
	return func(v int64) bool {
		return v >= lo && v <= hi
	}
}

// ParseOptionalInt reads an integer query parameter. A missing parameter yields def.
// An unparsable or rejected value writes a 400 response and returns false.
func ParseOptionalInt(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, def int, pValidator ParamValidator) (int, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, true
	}
	intValue, err := strconv.ParseInt(value, 10, 32)
	if err != nil || !pValidator(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int(intValue), true
}
