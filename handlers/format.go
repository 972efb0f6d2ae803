package handlers

import (
	"net/http"

	"washclub-checkout-api/models"
	"washclub-checkout-api/utils"
)

var formatters = map[string]func(string) string{
	"phone":        utils.FormatPhone,
	"licensePlate": utils.MaskPlate,
	"cardNumber":   utils.FormatCardNumber,
}

type formatRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Format applies the input mask for a form field. The result is
// presentational only and is not stored.
func Format(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	format, ok := formatters[req.Field]
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Unknown field")
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Formatted",
		Data:    formatRequest{Field: req.Field, Value: format(req.Value)},
	})
}
