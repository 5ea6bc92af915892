package middleware

import (
	"encoding/json"
	"net/http"

	"p9e.in/launchpad/pkg/workflow"
)

func writeError(w http.ResponseWriter, status int, code workflow.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"code":    string(code),
	})
}
