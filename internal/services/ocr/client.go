package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiVersion         = "2023-07-31"
	defaultPollTimeout = 120 * time.Second
	defaultPollDelay   = 2 * time.Second
)

// AnalyzeResult is the outcome of one successful document analysis.
type AnalyzeResult struct {
	ExtractedText    string                 `json:"extracted_text"`
	InvoiceData      map[string]interface{} `json:"invoice_data"`
	PageCount        int                    `json:"page_count"`
	Confidence       float64                `json:"confidence"`
	ProcessingTimeMS int64                  `json:"processing_time_ms"`
	RetryCount       int                    `json:"retry_count"`
}

// Client calls the Azure Document Intelligence REST API. Analysis is
// asynchronous on the Azure side: submit, then poll the operation until it
// settles.
type Client struct {
	endpoint     string
	apiKey       string
	modelID      string
	httpClient   *http.Client
	pollInterval time.Duration
	log          *zap.Logger
}

// NewClient creates an Azure Document Intelligence client.
func NewClient(endpoint, apiKey, modelID string, pollInterval time.Duration, log *zap.Logger) *Client {
	if modelID == "" {
		modelID = "prebuilt-invoice"
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollDelay
	}
	return &Client{
		endpoint:     endpoint,
		apiKey:       apiKey,
		modelID:      modelID,
		httpClient:   &http.Client{Timeout: defaultPollTimeout},
		pollInterval: pollInterval,
		log:          log,
	}
}

// AnalyzeBytes submits raw document bytes for analysis and waits for the
// result.
func (c *Client) AnalyzeBytes(ctx context.Context, documentBytes []byte, contentType string) (*AnalyzeResult, error) {
	return c.analyze(ctx, bytes.NewReader(documentBytes), contentType)
}

// AnalyzeURL submits a publicly reachable document URL for analysis and
// waits for the result.
func (c *Client) AnalyzeURL(ctx context.Context, documentURL string) (*AnalyzeResult, error) {
	body, err := json.Marshal(map[string]string{"urlSource": documentURL})
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: "failed to encode url source", Err: err}
	}
	return c.analyze(ctx, bytes.NewReader(body), "application/json")
}

func (c *Client) analyze(ctx context.Context, body io.Reader, contentType string) (*AnalyzeResult, error) {
	startTime := time.Now()

	operationURL, err := c.submit(ctx, body, contentType)
	if err != nil {
		return nil, err
	}

	raw, err := c.poll(ctx, operationURL)
	if err != nil {
		return nil, err
	}

	result := parseAnalyzeResponse(raw)
	result.ProcessingTimeMS = time.Since(startTime).Milliseconds()

	c.log.Info("Document analysis completed",
		zap.Int("page_count", result.PageCount),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("processing_time_ms", result.ProcessingTimeMS),
	)

	return result, nil
}

// submit posts the analyze request and returns the operation URL to poll.
func (c *Client) submit(ctx context.Context, body io.Reader, contentType string) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.modelID, apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", &Error{Kind: KindInvalidInput, Message: "failed to build analyze request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: classifyTransportError(err), Message: "analyze request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", &Error{Kind: KindServiceError, Message: "analyze response missing Operation-Location"}
	}

	return operationURL, nil
}

// analyzeOperation is the polling envelope of an analyze operation.
type analyzeOperation struct {
	Status        string          `json:"status"`
	AnalyzeResult json.RawMessage `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// poll waits for the operation to settle, honoring context cancellation
// between polls.
func (c *Client) poll(ctx context.Context, operationURL string) (*rawAnalyzeResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		op, err := c.fetchOperation(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		switch op.Status {
		case "succeeded":
			var raw rawAnalyzeResult
			if err := json.Unmarshal(op.AnalyzeResult, &raw); err != nil {
				return nil, &Error{Kind: KindServiceError, Message: "failed to decode analyze result", Err: err}
			}
			return &raw, nil
		case "failed":
			message := "analysis failed"
			if op.Error != nil {
				message = fmt.Sprintf("analysis failed: %s: %s", op.Error.Code, op.Error.Message)
			}
			return nil, &Error{Kind: KindServiceError, Message: message}
		}

		select {
		case <-ctx.Done():
			kind := KindTimeout
			if ctx.Err() == context.Canceled {
				kind = KindUnknown
			}
			return nil, &Error{Kind: kind, Message: "analysis polling aborted", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchOperation(ctx context.Context, operationURL string) (*analyzeOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: "failed to build poll request", Err: err}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), Message: "poll request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	var op analyzeOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, &Error{Kind: KindServiceError, Message: "failed to decode poll response", Err: err}
	}

	return &op, nil
}

// rawAnalyzeResult is the subset of the Azure analyze result this engine
// consumes.
type rawAnalyzeResult struct {
	Content   string `json:"content"`
	Pages     []struct {
		PageNumber int `json:"pageNumber"`
	} `json:"pages"`
	Documents []struct {
		Fields map[string]rawField `json:"fields"`
	} `json:"documents"`
}

type rawField struct {
	Type            string   `json:"type"`
	Content         string   `json:"content"`
	ValueString     *string  `json:"valueString"`
	ValueDate       *string  `json:"valueDate"`
	ValueNumber     *float64 `json:"valueNumber"`
	ValueCurrency   *struct {
		Amount float64 `json:"amount"`
	} `json:"valueCurrency"`
	Confidence float64 `json:"confidence"`
}

// parseAnalyzeResponse flattens the Azure result into the engine's shape:
// full text, a field bag keyed by the Azure field names, and a mean field
// confidence.
func parseAnalyzeResponse(raw *rawAnalyzeResult) *AnalyzeResult {
	fields := make(map[string]interface{})
	totalConfidence := 0.0
	fieldCount := 0

	for _, doc := range raw.Documents {
		for name, field := range doc.Fields {
			fields[name] = map[string]interface{}{
				"value":      fieldValue(field),
				"content":    field.Content,
				"confidence": field.Confidence,
			}
			if field.Confidence > 0 {
				totalConfidence += field.Confidence
				fieldCount++
			}
		}
	}

	confidence := 0.0
	if fieldCount > 0 {
		confidence = math.Round(totalConfidence/float64(fieldCount)*10000) / 10000
	}

	return &AnalyzeResult{
		ExtractedText: raw.Content,
		InvoiceData:   map[string]interface{}{"fields": fields},
		PageCount:     len(raw.Pages),
		Confidence:    confidence,
	}
}

// fieldValue picks the most specific typed value a field carries, falling
// back to its text content.
func fieldValue(field rawField) interface{} {
	switch {
	case field.ValueString != nil:
		return *field.ValueString
	case field.ValueDate != nil:
		return *field.ValueDate
	case field.ValueCurrency != nil:
		return field.ValueCurrency.Amount
	case field.ValueNumber != nil:
		return *field.ValueNumber
	default:
		return field.Content
	}
}
