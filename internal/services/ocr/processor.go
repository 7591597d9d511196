package ocr

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// supportedMIMETypes are the content types the analysis model accepts.
var supportedMIMETypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/tiff":      true,
	"image/bmp":       true,
}

// AnalyzeClient is the analysis backend the processor drives. Satisfied by
// *Client; narrowed to an interface so retry behavior is testable without a
// live service.
type AnalyzeClient interface {
	AnalyzeBytes(ctx context.Context, documentBytes []byte, contentType string) (*AnalyzeResult, error)
	AnalyzeURL(ctx context.Context, documentURL string) (*AnalyzeResult, error)
}

// Processor wraps the analysis client with input validation and retry on
// transient failures. Backoff doubles per attempt.
type Processor struct {
	client     AnalyzeClient
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

// NewProcessor creates a document processor.
func NewProcessor(client AnalyzeClient, maxRetries int, retryDelay time.Duration, log *zap.Logger) *Processor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Processor{
		client:     client,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        log,
	}
}

// ProcessBytes analyzes raw document bytes after checking the content type.
func (p *Processor) ProcessBytes(ctx context.Context, documentBytes []byte, contentType, documentID string) (*AnalyzeResult, error) {
	if !supportedMIMETypes[contentType] {
		return nil, &Error{
			Kind:    KindUnsupportedFormat,
			Message: "unsupported content type: " + contentType,
		}
	}

	p.log.Info("Processing document",
		zap.String("document_id", documentID),
		zap.String("content_type", contentType),
		zap.Int("size_bytes", len(documentBytes)),
	)

	return p.withRetry(ctx, documentID, func(ctx context.Context) (*AnalyzeResult, error) {
		return p.client.AnalyzeBytes(ctx, documentBytes, contentType)
	})
}

// ProcessURL analyzes a document referenced by URL.
func (p *Processor) ProcessURL(ctx context.Context, documentURL, documentID string) (*AnalyzeResult, error) {
	p.log.Info("Processing document from URL", zap.String("document_id", documentID))

	return p.withRetry(ctx, documentID, func(ctx context.Context) (*AnalyzeResult, error) {
		return p.client.AnalyzeURL(ctx, documentURL)
	})
}

// withRetry runs the analysis up to maxRetries times. Non-retryable errors
// and context cancellation end the attempts immediately; the returned result
// records how many retries were needed.
func (p *Processor) withRetry(ctx context.Context, documentID string, analyze func(context.Context) (*AnalyzeResult, error)) (*AnalyzeResult, error) {
	var lastErr error
	delay := p.retryDelay

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		result, err := analyze(ctx)
		if err == nil {
			result.RetryCount = attempt
			return result, nil
		}
		lastErr = err

		if ocrErr, ok := err.(*Error); ok && !ocrErr.Retryable() {
			p.log.Warn("Analysis failed permanently",
				zap.String("document_id", documentID),
				zap.String("error_kind", string(ocrErr.Kind)),
				zap.Error(err),
			)
			return nil, err
		}

		if attempt < p.maxRetries-1 {
			p.log.Warn("Analysis failed, retrying",
				zap.String("document_id", documentID),
				zap.String("error_kind", string(KindOf(err))),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)

			select {
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, Message: "retry aborted", Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	p.log.Error("Analysis failed after all retries",
		zap.String("document_id", documentID),
		zap.Int("max_retries", p.maxRetries),
		zap.Error(lastErr),
	)

	return nil, lastErr
}
