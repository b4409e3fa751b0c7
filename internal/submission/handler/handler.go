package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/internal/platform/middleware"
	"github.com/stellarnodeN/recrusearch/internal/submission"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

// Service defines the submission operations the transport needs.
type Service interface {
	Enroll(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID, attrs eligibility.AttributeRecord) (submission.EnrollResult, error)
	Submit(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID, payload []byte) (submission.SubmitResult, error)
	RevokeConsent(ctx context.Context, campaignID domain.CampaignID, participantID domain.ParticipantID) error
}

// Handler is the thin HTTP layer over the submission service. It decodes,
// authenticates, delegates, and translates coded errors; business logic
// stays in the service.
type Handler struct {
	logger       *slog.Logger
	service      Service
	jwtValidator middleware.JWTValidator
}

func New(service Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		jwtValidator: jwtValidator,
	}
}

// Register registers the participant-facing routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(60 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		router.Post("/campaigns/{campaignID}/enrollments", h.handleEnroll)
		router.Post("/campaigns/{campaignID}/submissions", h.handleSubmit)
		router.Post("/campaigns/{campaignID}/consent/revoke", h.handleRevokeConsent)
	})
}

type enrollRequest struct {
	Attributes eligibility.AttributeRecord `json:"attributes"`
}

type enrollResponse struct {
	GrantedAt time.Time `json:"granted_at"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, participantID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.Enroll(ctx, campaignID, participantID, req.Attributes)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, enrollResponse{GrantedAt: result.GrantedAt})
}

type submitRequest struct {
	// Payload is the base64-encoded plaintext; it is sealed server-side to
	// the campaign owner's public key and never persisted as received.
	Payload string `json:"payload"`
}

type submitResponse struct {
	ContentID     string    `json:"content_id"`
	IntegrityHash string    `json:"integrity_hash"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, participantID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "payload must be base64"))
		return
	}

	result, err := h.service.Submit(ctx, campaignID, participantID, payload)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, submitResponse{
		ContentID:     result.ContentID.String(),
		IntegrityHash: base64.StdEncoding.EncodeToString(result.IntegrityHash[:]),
		SubmittedAt:   result.SubmittedAt,
	})
}

func (h *Handler) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, participantID, ok := h.identify(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeConsent(ctx, campaignID, participantID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identify resolves the campaign from the path and the participant from the
// auth context. A zero participant means the middleware chain is broken.
func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (domain.CampaignID, domain.ParticipantID, bool) {
	ctx := r.Context()

	campaignID, err := domain.ParseCampaignID(chi.URLParam(r, "campaignID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return domain.CampaignID{}, domain.ParticipantID{}, false
	}

	participantID := middleware.GetParticipantID(ctx)
	if participantID.IsZero() {
		h.logger.ErrorContext(ctx, "participant missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		h.writeError(ctx, w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.CampaignID{}, domain.ParticipantID{}, false
	}
	return campaignID, participantID, true
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}

	message := "internal error"
	var de *dErrors.Error
	if status < http.StatusInternalServerError && errors.As(err, &de) {
		message = de.Message
	}
	h.writeJSON(w, status, errorResponse{Error: string(code), Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
