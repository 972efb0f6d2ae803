package utils

import (
	"encoding/json"
	"net/http"

	"washclub-checkout-api/models"
)

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, models.APIResponse{
		Status:  "error",
		Message: message,
	})
}

func SendValidationErrors(w http.ResponseWriter, fields map[string]string) {
	SendJSON(w, http.StatusBadRequest, models.APIResponse{
		Status:  "error",
		Message: "Validation failed",
		Errors:  fields,
	})
}

func SendSuccessResponse(w http.ResponseWriter, response models.APIResponse) {
	if response.Status == "" {
		response.Status = "success"
	}
	SendJSON(w, http.StatusOK, response)
}

func SendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
