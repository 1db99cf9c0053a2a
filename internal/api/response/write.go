package response

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSON writes data as the response body. A value that fails to encode is
// answered with the internal error body and a 500.
func JSON(w http.ResponseWriter, status int, data any) {
	var body bytes.Buffer
	if data != nil {
		if err := json.NewEncoder(&body).Encode(data); err != nil {
			status = http.StatusInternalServerError
			body.Reset()
			body.WriteString(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}` + "\n")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())
}
