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

	"github.com/stellarnodeN/recrusearch/internal/campaign"
	"github.com/stellarnodeN/recrusearch/internal/eligibility"
	"github.com/stellarnodeN/recrusearch/internal/platform/middleware"
	"github.com/stellarnodeN/recrusearch/pkg/domain"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

// Service defines the campaign operations the transport needs.
type Service interface {
	Create(ctx context.Context, creator domain.ParticipantID, def campaign.Definition) (domain.CampaignID, error)
	Publish(ctx context.Context, caller domain.ParticipantID, campaignID domain.CampaignID) error
	Get(ctx context.Context, caller domain.ParticipantID, campaignID domain.CampaignID) (campaign.View, error)
}

// Handler is the thin HTTP layer over the campaign service.
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

// Register registers the researcher-facing routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		router.Post("/campaigns", h.handleCreate)
		router.Post("/campaigns/{campaignID}/publish", h.handlePublish)
		router.Get("/campaigns/{campaignID}", h.handleGet)
	})
}

type createRequest struct {
	// OwnerPublicKey is the base64-encoded X25519 public key submissions are
	// sealed to. The matching private key never reaches this service.
	OwnerPublicKey  string              `json:"owner_public_key"`
	EnrollmentStart time.Time           `json:"enrollment_start"`
	EnrollmentEnd   time.Time           `json:"enrollment_end"`
	CollectionEnd   time.Time           `json:"collection_end"`
	MaxParticipants int                 `json:"max_participants"`
	Rules           eligibility.RuleSet `json:"rules"`
}

type createResponse struct {
	CampaignID string `json:"campaign_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creator := middleware.GetParticipantID(ctx)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	key, err := base64.StdEncoding.DecodeString(req.OwnerPublicKey)
	if err != nil || len(key) != 32 {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeInvalidInput, "owner_public_key must be 32 base64-encoded bytes"))
		return
	}

	def := campaign.Definition{
		EnrollmentStart: req.EnrollmentStart,
		EnrollmentEnd:   req.EnrollmentEnd,
		CollectionEnd:   req.CollectionEnd,
		MaxParticipants: req.MaxParticipants,
		Rules:           req.Rules,
	}
	copy(def.OwnerPublicKey[:], key)

	campaignID, err := h.service.Create(ctx, creator, def)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, createResponse{CampaignID: campaignID.String()})
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	campaignID, err := domain.ParseCampaignID(chi.URLParam(r, "campaignID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.service.Publish(ctx, middleware.GetParticipantID(ctx), campaignID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type viewResponse struct {
	CampaignID      string              `json:"campaign_id"`
	Phase           string              `json:"phase"`
	EnrollmentStart time.Time           `json:"enrollment_start"`
	EnrollmentEnd   time.Time           `json:"enrollment_end"`
	CollectionEnd   time.Time           `json:"collection_end"`
	MaxParticipants int                 `json:"max_participants"`
	EnrolledCount   int                 `json:"enrolled_count"`
	Rules           eligibility.RuleSet `json:"rules"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	campaignID, err := domain.ParseCampaignID(chi.URLParam(r, "campaignID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	view, err := h.service.Get(ctx, middleware.GetParticipantID(ctx), campaignID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewResponse{
		CampaignID:      view.ID.String(),
		Phase:           string(view.Phase),
		EnrollmentStart: view.EnrollmentStart,
		EnrollmentEnd:   view.EnrollmentEnd,
		CollectionEnd:   view.CollectionEnd,
		MaxParticipants: view.MaxParticipants,
		EnrolledCount:   view.EnrolledCount,
		Rules:           view.Rules,
	})
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
