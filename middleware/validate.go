package middleware

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/sreedevirajkumar/candle/utils"
)

var ErrBadBody = errors.New("bad request body")

// DecodeJSON decodes a JSON body into dst. Unknown fields are accepted, as
// payment providers and the storefront add fields freely. On failure the
// error response has already been written.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			utils.WriteJSON(w, http.StatusUnsupportedMediaType, utils.APIResponse{Success: false, Message: "Content-Type must be application/json"})
			return ErrBadBody
		}
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.APIResponse{Success: false, Message: "Request body too large"})
			return ErrBadBody
		}
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return ErrBadBody
	}
	return nil
}

// ValidateJSON decodes like DecodeJSON and then runs utils.ValidateStruct.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := DecodeJSON(w, r, dst); err != nil {
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Validation failed", Data: err.Error()})
		return err
	}
	return nil
}
