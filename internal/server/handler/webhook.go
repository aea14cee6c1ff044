// Package handler provides the HTTP handlers for inbound GitHub traffic.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/jobs"
	"github.com/diff0/diff0/internal/storage"
)

// WebhookHandler is the single entry point for GitHub webhook deliveries.
// Every delivery is signature-checked, recorded in the event ledger exactly
// once, then either dispatched to the review pipeline, handled inline
// (installation sync), or acknowledged and ignored.
type WebhookHandler struct {
	cfg        *config.Config
	store      storage.Store
	dispatcher core.JobDispatcher
	syncer     *jobs.InstallationSyncer
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(cfg *config.Config, store storage.Store, dispatcher core.JobDispatcher, syncer *jobs.InstallationSyncer, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		syncer:     syncer,
		logger:     logger,
	}
}

// Handle processes one GitHub webhook delivery.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, []byte(h.cfg.GitHub.WebhookSecret))
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	deliveryID := github.DeliveryID(r)
	eventType := github.WebHookType(r)
	if deliveryID == "" {
		http.Error(w, "Missing delivery ID", http.StatusBadRequest)
		return
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		h.logger.Error("could not parse webhook", "type", eventType, "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	// The ledger insert is the idempotency gate: redeliveries hit the
	// existing row and stop here.
	_, existed, err := h.store.LogWebhookEvent(r.Context(), &core.WebhookEvent{
		Source:         "github",
		EventType:      eventType,
		DeliveryID:     deliveryID,
		InstallationID: installationIDOf(event),
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to record webhook delivery", "delivery_id", deliveryID, "error", err)
		http.Error(w, "Failed to record delivery", http.StatusInternalServerError)
		return
	}
	if existed {
		h.logger.Info("duplicate webhook delivery", "delivery_id", deliveryID, "type", eventType)
		_, _ = fmt.Fprint(w, "Delivery already received")
		return
	}

	switch e := event.(type) {
	case *github.PullRequestEvent:
		h.handlePullRequest(r.Context(), w, deliveryID, e)
	case *github.InstallationEvent:
		h.finishInline(r.Context(), w, deliveryID, h.syncer.HandleInstallation(r.Context(), e))
	case *github.InstallationRepositoriesEvent:
		h.finishInline(r.Context(), w, deliveryID, h.syncer.HandleInstallationRepositories(r.Context(), e))
	case *github.PingEvent:
		h.markProcessed(r.Context(), deliveryID, nil)
		_, _ = fmt.Fprint(w, "pong")
	default:
		h.logger.Debug("ignoring webhook event type", "type", eventType)
		h.markProcessed(r.Context(), deliveryID, nil)
		_, _ = fmt.Fprint(w, "Event type not handled")
	}
}

// handlePullRequest hands reviewable PR events to the dispatcher. The final
// applicability decision (registered repo, existing review) belongs to the
// job, which has database access; only payload-level rejections happen here.
func (h *WebhookHandler) handlePullRequest(ctx context.Context, w http.ResponseWriter, deliveryID string, event *github.PullRequestEvent) {
	req, err := core.ReviewRequestFromPullRequest(deliveryID, event)
	if err != nil {
		h.logger.Debug("ignoring pull request event", "reason", err.Error(), "repo", event.GetRepo().GetFullName())
		h.markProcessed(ctx, deliveryID, nil)
		_, _ = fmt.Fprint(w, "Event ignored")
		return
	}

	if err := h.dispatcher.Dispatch(ctx, req); err != nil {
		h.logger.Error("failed to dispatch review job", "error", err, "repo", req.RepoFullName)
		h.markProcessed(ctx, deliveryID, err)
		http.Error(w, "Failed to queue review", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("review job dispatched", "repo", req.RepoFullName, "pr", req.PRNumber, "delivery_id", deliveryID)
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprint(w, "Review job accepted")
}

// finishInline completes events handled synchronously in the request cycle.
func (h *WebhookHandler) finishInline(ctx context.Context, w http.ResponseWriter, deliveryID string, handleErr error) {
	h.markProcessed(ctx, deliveryID, handleErr)
	if handleErr != nil {
		h.logger.Error("failed to process installation event", "delivery_id", deliveryID, "error", handleErr)
		http.Error(w, "Failed to process event", http.StatusInternalServerError)
		return
	}
	_, _ = fmt.Fprint(w, "Event processed")
}

func (h *WebhookHandler) markProcessed(ctx context.Context, deliveryID string, procErr error) {
	if err := h.store.MarkEventProcessed(ctx, deliveryID, procErr); err != nil {
		h.logger.Error("failed to mark event processed", "delivery_id", deliveryID, "error", err)
	}
}

// installationIDOf extracts the installation ID from the event types this
// service acts on; other event types record zero.
func installationIDOf(event any) int64 {
	switch e := event.(type) {
	case *github.PullRequestEvent:
		return e.GetInstallation().GetID()
	case *github.InstallationEvent:
		return e.GetInstallation().GetID()
	case *github.InstallationRepositoriesEvent:
		return e.GetInstallation().GetID()
	default:
		return 0
	}
}
