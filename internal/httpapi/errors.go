package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-logr/logr"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// writeError maps a taxonomy error onto an HTTP status and a JSON body,
// per spec §7's "business layer maps to the taxonomy; HTTP layer maps
// taxonomy → status" propagation rule.
func writeError(w http.ResponseWriter, log logr.Logger, err error) {
	var taxErr *taxerrors.Error
	status := http.StatusInternalServerError
	if errors.As(err, &taxErr) {
		status = taxErr.Kind().HTTPStatus()
	}
	if status >= 500 {
		log.Error(err, "request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
