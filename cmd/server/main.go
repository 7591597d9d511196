// Package main provides a local HTTP server for development and testing.
// It exposes the identification and field-mapping endpoints plus a full
// extract pipeline when Azure Document Intelligence credentials are set.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"forwarder-mapping-engine/internal/config"
	"forwarder-mapping-engine/internal/handlers"
	"forwarder-mapping-engine/internal/models"
	"forwarder-mapping-engine/internal/services/database"
	"forwarder-mapping-engine/internal/services/mapper"
	"forwarder-mapping-engine/internal/services/ocr"
	"forwarder-mapping-engine/internal/services/patterns"
	"forwarder-mapping-engine/internal/services/registry"
	s3service "forwarder-mapping-engine/internal/services/s3"
	"forwarder-mapping-engine/internal/services/ses"
	"forwarder-mapping-engine/internal/utils"
)

// Server holds all dependencies
type Server struct {
	db        *database.DB
	registry  *registry.Registry
	mapper    *mapper.Mapper
	processor *ocr.Processor
	store     *s3service.Service
	notifier  *ses.Service
	config    *config.Config
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// IdentifyRequest is the body of POST /api/identify
type IdentifyRequest struct {
	OCRText string `json:"ocr_text"`
}

// MapFieldsRequest is the body of POST /api/map-fields
type MapFieldsRequest struct {
	OCRText          string                 `json:"ocr_text"`
	ForwarderID      string                 `json:"forwarder_id,omitempty"`
	StructuredFields map[string]interface{} `json:"structured_fields,omitempty"`
}

// ExtractRequest is the body of POST /api/extract. Exactly one of
// document_id (a previously uploaded document), document_url or
// document_base64 must be set.
type ExtractRequest struct {
	DocumentID     string `json:"document_id,omitempty"`
	DocumentURL    string `json:"document_url,omitempty"`
	DocumentBase64 string `json:"document_base64,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
}

// UploadURLRequest is the body of POST /api/upload-url.
type UploadURLRequest struct {
	ContentType   string `json:"content_type"`
	ExpiryMinutes int    `json:"expiry_minutes,omitempty"`
}

// ExtractResponse is the full pipeline outcome for one document.
type ExtractResponse struct {
	DocumentID     string                                `json:"document_id"`
	Identification models.IdentificationResult           `json:"identification"`
	Status         models.IdentificationStatus           `json:"status"`
	FieldMappings  map[string]models.FieldMappingResult  `json:"field_mappings"`
	UnmappedFields map[string]models.UnmappedFieldDetail `json:"unmapped_fields"`
	Statistics     models.ExtractionStatistics           `json:"statistics"`
	OCRConfidence  float64                               `json:"ocr_confidence"`
	PageCount      int                                   `json:"page_count"`
}

func main() {
	// Initialize logger first
	if err := utils.InitLogger("info"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load config from environment: %v", err)
		cfg = &config.Config{}
	}

	// Initialize database; the server degrades to file/default patterns
	// without one.
	db, err := database.New(cfg)
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		log.Println("Server will use file or compiled-in patterns")
	}

	loader := patterns.NewLoader(db, cfg.PatternsFile, utils.Logger)
	reg := registry.New(context.Background(), loader, utils.Logger)

	server := &Server{
		db:       db,
		registry: reg,
		mapper:   mapper.New(utils.Logger),
		config:   cfg,
	}

	// OCR pipeline is optional; /api/extract reports it unconfigured when
	// the Azure credentials are missing.
	if cfg.AzureDIEndpoint != "" && cfg.AzureDIKey != "" {
		client := ocr.NewClient(cfg.AzureDIEndpoint, cfg.AzureDIKey, cfg.AzureDIModelID, cfg.OCRPollInterval, utils.Logger)
		server.processor = ocr.NewProcessor(client, cfg.OCRMaxRetries, cfg.OCRRetryDelay, utils.Logger)
	}

	// Document store and review notifications are optional too; without
	// them extraction results are returned but not persisted or escalated.
	if cfg.DocumentsBucket != "" {
		store, err := s3service.NewService(context.Background())
		if err != nil {
			log.Printf("Warning: Could not initialize document store: %v", err)
		} else {
			server.store = store
		}
	}
	if cfg.ReviewNotifyEmail != "" {
		notifier, err := ses.NewService(context.Background())
		if err != nil {
			log.Printf("Warning: Could not initialize review notifier: %v", err)
		} else {
			server.notifier = notifier
		}
	}

	// Periodic pattern reload
	var reloadCron *cron.Cron
	if cfg.ReloadCron != "" {
		reloadCron, err = reg.StartReloadSchedule(cfg.ReloadCron)
		if err != nil {
			log.Printf("Warning: Could not schedule pattern reload: %v", err)
		}
	}
	if reloadCron != nil {
		defer reloadCron.Stop()
	}

	// Setup routes
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/api/health", server.healthHandler)

	// Identify forwarder from OCR text
	mux.HandleFunc("/api/identify", server.identifyHandler)

	// Map fields from OCR text and structured output
	mux.HandleFunc("/api/map-fields", server.mapFieldsHandler)

	// Full pipeline: OCR + identify + map
	mux.HandleFunc("/api/extract", server.extractHandler)

	// Presigned upload URL for the documents bucket
	mux.HandleFunc("/api/upload-url", server.uploadURLHandler)

	// List configured forwarders
	mux.HandleFunc("/api/forwarders", server.forwardersHandler)

	// Force a pattern reload
	mux.HandleFunc("/api/reload", server.reloadHandler)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)

	log.Printf("Forwarder Mapping Engine API Server")
	log.Printf("Listening on http://localhost:%d", cfg.Port)
	log.Printf("Health: http://localhost:%d/health", cfg.Port)
	log.Println("")

	// Start server (this blocks until error)
	log.Printf("Starting HTTP server on %s...", addr)
	serverErr := http.ListenAndServe(addr, handler)
	if serverErr != nil {
		log.Fatalf("Server failed: %v", serverErr)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err == nil {
			dbStatus = "connected"
		}
	}

	response := Response{
		Success: true,
		Message: "Forwarder Mapping Engine API is running",
		Data: map[string]interface{}{
			"status":         "healthy",
			"database":       dbStatus,
			"pattern_source": s.registry.Source(),
			"ocr_configured": s.processor != nil,
			"timestamp":      time.Now().Format(time.RFC3339),
			"version":        "1.0.0",
		},
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) identifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	result := s.registry.Matcher().Identify(req.OCRText)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"result": result,
			"status": handlers.StatusFor(result.Confidence),
		},
	})
}

func (s *Server) mapFieldsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MapFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	rules := s.registry.RulesFor(req.ForwarderID)
	mapped, unmapped, stats := s.mapper.MapFields(req.OCRText, rules, req.StructuredFields, req.ForwarderID)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"field_mappings":  mapped,
			"unmapped_fields": unmapped,
			"statistics":      stats,
		},
	})
}

func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.processor == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "OCR backend not configured",
		})
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.New().String()
	}

	analysis, err := s.analyzeDocument(r.Context(), &req, documentID)
	if err != nil {
		status := http.StatusBadGateway
		if kind := ocr.KindOf(err); kind == ocr.KindInvalidInput || kind == ocr.KindUnsupportedFormat || kind == ocr.KindFileTooLarge {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	identification := s.registry.Matcher().Identify(analysis.ExtractedText)
	rules := s.registry.RulesFor(identification.ForwarderID)
	mapped, unmapped, stats := s.mapper.MapFields(
		analysis.ExtractedText, rules, analysis.InvoiceData, identification.ForwarderID)

	utils.Logger.Info("Extraction pipeline completed",
		zap.String("document_id", documentID),
		zap.String("forwarder_code", identification.ForwarderCode),
		zap.Int("mapped_fields", stats.MappedFields),
	)

	response := ExtractResponse{
		DocumentID:     documentID,
		Identification: identification,
		Status:         handlers.StatusFor(identification.Confidence),
		FieldMappings:  mapped,
		UnmappedFields: unmapped,
		Statistics:     stats,
		OCRConfidence:  analysis.Confidence,
		PageCount:      analysis.PageCount,
	}

	s.persistAndEscalate(response)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// persistAndEscalate stores the extraction artifact and raises a review
// notification when the document did not clear auto-identification or has
// required fields unmapped. Best effort: failures are logged, never
// surfaced to the caller.
func (s *Server) persistAndEscalate(result ExtractResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.StoreResult(ctx, result.DocumentID, result); err != nil {
			utils.Logger.Warn("Failed to persist extraction result",
				zap.String("document_id", result.DocumentID),
				zap.Error(err),
			)
		}
	}

	if s.notifier == nil {
		return
	}
	unmappedRequired := requiredUnmappedNames(result.UnmappedFields)
	needsReview := result.Status != models.StatusIdentified || len(unmappedRequired) > 0
	if !needsReview {
		return
	}

	_, err := s.notifier.SendReviewNotification(ctx, ses.ReviewNotificationParams{
		DocumentID:     result.DocumentID,
		ForwarderCode:  result.Identification.ForwarderCode,
		ForwarderName:  result.Identification.ForwarderName,
		Confidence:     result.Identification.Confidence,
		Status:         result.Status,
		MappedFields:   result.Statistics.MappedFields,
		UnmappedFields: unmappedRequired,
	})
	if err != nil {
		utils.Logger.Warn("Failed to send review notification",
			zap.String("document_id", result.DocumentID),
			zap.Error(err),
		)
	}
}

// requiredUnmappedNames lists the required fields that stayed unmapped,
// sorted for stable notification output.
func requiredUnmappedNames(unmapped map[string]models.UnmappedFieldDetail) []string {
	names := make([]string, 0, len(unmapped))
	for name, detail := range unmapped {
		if detail.IsRequired {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) uploadURLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "Document store not configured",
		})
		return
	}

	var req UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/pdf"
	}

	documentID := uuid.New().String()
	presigned, err := s.store.GeneratePresignedUploadURL(
		r.Context(), s3service.DocumentKey(documentID), req.ContentType, req.ExpiryMinutes)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Could not generate upload URL",
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"document_id": documentID,
			"upload":      presigned,
		},
	})
}

// analyzeDocument routes an extract request to the URL or bytes entry point.
// A document_id refers to a previously uploaded object in the documents
// bucket, handed to the analysis service through a presigned URL.
func (s *Server) analyzeDocument(ctx context.Context, req *ExtractRequest, documentID string) (*ocr.AnalyzeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.OCRTimeout)
	defer cancel()

	if req.DocumentID != "" {
		if s.store == nil {
			return nil, &ocr.Error{Kind: ocr.KindInvalidInput, Message: "document store not configured"}
		}
		presigned, err := s.store.GeneratePresignedDownloadURL(ctx, s3service.DocumentKey(req.DocumentID), 0)
		if err != nil {
			return nil, &ocr.Error{Kind: ocr.KindServiceError, Message: "could not presign stored document", Err: err}
		}
		return s.processor.ProcessURL(ctx, presigned.URL, documentID)
	}

	if req.DocumentURL != "" {
		return s.processor.ProcessURL(ctx, req.DocumentURL, documentID)
	}

	if req.DocumentBase64 != "" {
		documentBytes, err := base64.StdEncoding.DecodeString(req.DocumentBase64)
		if err != nil {
			return nil, &ocr.Error{Kind: ocr.KindInvalidInput, Message: "invalid base64 document", Err: err}
		}
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		return s.processor.ProcessBytes(ctx, documentBytes, contentType, documentID)
	}

	return nil, &ocr.Error{Kind: ocr.KindInvalidInput, Message: "document_id, document_url or document_base64 required"}
}

func (s *Server) forwardersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	forwarders := s.registry.Forwarders()

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"forwarders": forwarders,
			"total":      len(forwarders),
			"source":     s.registry.Source(),
		},
	})
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.registry.Reload(r.Context())

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Patterns reloaded",
		Data: map[string]interface{}{
			"source": s.registry.Source(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
