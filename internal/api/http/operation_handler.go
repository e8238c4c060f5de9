// internal/api/http/operation_handler.go
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OperationHandler serves the /operations REST surface: submission plus outcome
// history lookups.
type OperationHandler struct {
	dispatcher domain.Dispatcher
	outcomes   domain.OutcomeRepository
	logger     *slog.Logger
	validate   *validator.Validate
	tracer     trace.Tracer
}

// NewOperationHandler creates a new OperationHandler and initializes the validator.
func NewOperationHandler(dispatcher domain.Dispatcher, outcomes domain.OutcomeRepository, logger *slog.Logger) *OperationHandler {
	return &OperationHandler{
		dispatcher: dispatcher,
		outcomes:   outcomes,
		logger:     logger.With("component", "operation-handler"),
		validate:   validator.New(),
		tracer:     otel.Tracer("rtm-dispatcher-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers operation-related routes to the http.ServeMux.
func (h *OperationHandler) RegisterRoutes(mux *http.ServeMux) {
	baseHandler := http.HandlerFunc(h.handleOperations)

	instrumentedHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := "/operations"
		if requestID := strings.TrimPrefix(r.URL.Path, "/operations/"); requestID != "" && requestID != r.URL.Path {
			path = "/operations/{requestId}"
		}

		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		baseHandler.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})

	mux.Handle("/operations", instrumentedHandler)
	mux.Handle("/operations/", instrumentedHandler)
}

// handleOperations is a general dispatcher for the /operations path
func (h *OperationHandler) handleOperations(w http.ResponseWriter, r *http.Request) {
	var requestID string
	if trimmed := strings.TrimPrefix(r.URL.Path, "/operations"); trimmed != "" {
		requestID = strings.Trim(trimmed, "/")
	}

	switch r.Method {
	case http.MethodPost:
		if requestID != "" {
			http.NotFound(w, r)
			return
		}
		h.handleSubmit(w, r)
	case http.MethodGet:
		if requestID != "" {
			h.handleGetOutcome(w, r, requestID)
		} else {
			h.handleListOutcomes(w, r)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSubmit accepts one operation request and returns its dispatch outcome.
// The HTTP status is 200 for every terminal outcome; callers read the outcome
// status from the body, so nothing is ever dropped without a visible verdict.
func (h *OperationHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.SubmitOperation")
	defer span.End()

	var req SubmitOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors,
				"Field '"+err.Field()+"' failed on the '"+err.Tag()+"' tag.",
			)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   "Validation failed",
			"details": validationErrors,
		})
		return
	}

	opReq := req.ToDomainRequest()
	span.SetAttributes(
		attribute.String("rtm.operation", string(opReq.Kind)),
		attribute.String("rtm.request_id", opReq.RequestID),
	)

	outcome := h.dispatcher.Dispatch(ctx, opReq)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

// handleGetOutcome returns the recorded outcome for one request ID.
func (h *OperationHandler) handleGetOutcome(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx, span := h.tracer.Start(r.Context(), "handler.GetOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("rtm.request_id", requestID))

	record, err := h.outcomes.Get(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrOutcomeNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			h.logger.Error("error getting outcome", "request_id", requestID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// handleListOutcomes lists outcome history for one kind (GET /operations?kind=NUDGE)
func (h *OperationHandler) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListOutcomes")
	defer span.End()

	kind := domain.OperationKind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		http.Error(w, "Query parameter 'kind' must name a known operation kind", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("rtm.operation", string(kind)))

	// Parse pagination parameters
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20 // default and max page size
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	records, err := h.outcomes.ListByKind(ctx, kind, page, pageSize)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("error listing outcomes", "operation", string(kind), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
