package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/cinechat/internal/security"
)

// decodeJSON reads a bounded JSON body into v. An empty body is accepted
// only when allowEmpty is set, in which case v is left untouched.
func (g *Gateway) decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	limits := security.BodyLimits{MaxBytes: g.config.MaxBodySize}
	data, err := limits.Read(r.Body)
	if errors.Is(err, security.ErrBodyTooLarge) {
		return &ValidationError{Message: err.Error()}
	}
	if err != nil {
		return &ValidationError{Message: "could not read request body"}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if allowEmpty {
			return nil
		}
		return &ValidationError{Message: "request body is required"}
	}
	if err := limits.Check(data); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ValidationError{Message: "invalid JSON body"}
	}
	return nil
}
