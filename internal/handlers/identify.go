package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/models"
	"forwarder-mapping-engine/internal/services/registry"
	"forwarder-mapping-engine/internal/utils"
)

// IdentifyHandler handles forwarder identification requests.
type IdentifyHandler struct {
	registry *registry.Registry
}

// NewIdentifyHandler creates a new identify handler.
func NewIdentifyHandler(reg *registry.Registry) *IdentifyHandler {
	return &IdentifyHandler{registry: reg}
}

// IdentifyRequest is the request body for identification.
type IdentifyRequest struct {
	OCRText    string `json:"ocr_text"`
	DocumentID string `json:"document_id,omitempty"`
}

// IdentifyResponse is the response body for identification.
type IdentifyResponse struct {
	Success bool                        `json:"success"`
	Result  models.IdentificationResult `json:"result"`
	Status  models.IdentificationStatus `json:"status"`
	Error   string                      `json:"error,omitempty"`
}

// Handle processes an identification request.
func (h *IdentifyHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}

	var req IdentifyRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		utils.Logger.Warn("Invalid identify request body", zap.Error(err))
		body, _ := json.Marshal(IdentifyResponse{Success: false, Error: "invalid request body"})
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    headers,
			Body:       string(body),
		}, nil
	}

	result := h.registry.Matcher().Identify(req.OCRText)
	status := StatusFor(result.Confidence)

	utils.Logger.Info("Identification request handled",
		zap.String("document_id", req.DocumentID),
		zap.String("status", string(status)),
		zap.Float64("confidence", result.Confidence),
	)

	body, _ := json.Marshal(IdentifyResponse{
		Success: true,
		Result:  result,
		Status:  status,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}, nil
}
