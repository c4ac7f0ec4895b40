package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/history"
	"channel-history/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	dayLayout      = "2006-01-02"
	publishTimeout = 5 * time.Second
)

// HistoryService fetches channel histories
type HistoryService interface {
	Fetch(ctx context.Context, q domain.Query) ([]*domain.Message, error)
	FetchUpdating(ctx context.Context, q domain.Query, opts ...history.TrackOption) (*history.Tracked, error)
}

// SnapshotArchive stores fetched histories
type SnapshotArchive interface {
	Save(ctx context.Context, snapshot *domain.Snapshot) error
	Latest(ctx context.Context, channelID string) (*domain.Snapshot, error)
}

// ChangePublisher forwards tracked history changes
type ChangePublisher interface {
	PublishChange(ctx context.Context, change domain.Change) error
}

// HistoryHandler handles channel history endpoints
type HistoryHandler struct {
	service   HistoryService
	registry  *history.Registry
	archive   SnapshotArchive
	publisher ChangePublisher
}

// NewHistoryHandler creates a new history handler. archive and publisher
// may be nil.
func NewHistoryHandler(service HistoryService, registry *history.Registry, archive SnapshotArchive, publisher ChangePublisher) *HistoryHandler {
	return &HistoryHandler{
		service:   service,
		registry:  registry,
		archive:   archive,
		publisher: publisher,
	}
}

// Routes registers the history endpoints on r
func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/channels/{id}/history", h.GetHistory)
	r.Post("/channels/{id}/tracked", h.Track)
	r.Get("/channels/{id}/snapshots/latest", h.LatestSnapshot)
	r.Get("/tracked", h.ListTracked)
	r.Get("/tracked/{id}", h.GetTracked)
	r.Delete("/tracked/{id}", h.StopTracking)
}

// HistoryResponse is returned by a one-shot fetch
type HistoryResponse struct {
	ChannelID  string            `json:"channel_id"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
	Messages   []*domain.Message `json:"messages"`
}

// TrackedResponse describes a tracked history and its current messages
type TrackedResponse struct {
	ID        string            `json:"id"`
	ChannelID string            `json:"channel_id"`
	CreatedAt time.Time         `json:"created_at"`
	Messages  []*domain.Message `json:"messages"`
}

// TrackedSummary is one entry of the tracked history listing
type TrackedSummary struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// GetHistory fetches a channel history once
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.service.Fetch(r.Context(), q)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := HistoryResponse{ChannelID: q.ChannelID, Messages: messages}
	if h.archive != nil {
		snapshot := domain.NewSnapshot(uuid.NewString(), q, messages)
		if err := h.archive.Save(r.Context(), snapshot); err != nil {
			observability.FromContext(r.Context()).Warn("failed to archive history",
				slog.String("error", err.Error()))
		} else {
			resp.SnapshotID = snapshot.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Track fetches a channel history and keeps it updated from live events
func (h *HistoryHandler) Track(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []history.TrackOption{history.WithChannelScope()}
	if r.URL.Query().Get("targeted") == "true" {
		opts = append(opts, history.WithTargetedReactions())
	}
	if h.publisher != nil {
		opts = append(opts, history.WithObserver(h.publish))
	}

	tracked, err := h.service.FetchUpdating(r.Context(), q, opts...)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.registry.Add(tracked)

	writeJSON(w, http.StatusCreated, trackedResponse(tracked))
}

// ListTracked lists the open tracked histories
func (h *HistoryHandler) ListTracked(w http.ResponseWriter, r *http.Request) {
	all := h.registry.List()
	summaries := make([]TrackedSummary, 0, len(all))
	for _, t := range all {
		summaries = append(summaries, TrackedSummary{
			ID:           t.ID(),
			ChannelID:    t.Query().ChannelID,
			CreatedAt:    t.CreatedAt(),
			MessageCount: t.Len(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracked": summaries})
}

// GetTracked returns the current messages of a tracked history
func (h *HistoryHandler) GetTracked(w http.ResponseWriter, r *http.Request) {
	tracked, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, trackedResponse(tracked))
}

// StopTracking closes a tracked history
func (h *HistoryHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LatestSnapshot returns the most recently archived history of a channel
func (h *HistoryHandler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "snapshot archive is not configured")
		return
	}

	snapshot, err := h.archive.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *HistoryHandler) publish(change domain.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := h.publisher.PublishChange(ctx, change); err != nil {
		slog.Error("failed to publish history change",
			slog.String("tracked_id", change.TrackedID),
			slog.String("error", err.Error()))
	}
}

func trackedResponse(t *history.Tracked) TrackedResponse {
	return TrackedResponse{
		ID:        t.ID(),
		ChannelID: t.Query().ChannelID,
		CreatedAt: t.CreatedAt(),
		Messages:  t.Messages(),
	}
}

// queryFromRequest reads the channel from the path and the optional day and
// count filters from the query string
func queryFromRequest(r *http.Request) (domain.Query, error) {
	var opts []domain.QueryOption

	if day := r.URL.Query().Get("day"); day != "" {
		d, err := time.Parse(dayLayout, day)
		if err != nil {
			return domain.Query{}, fmt.Errorf("%w: day must be formatted as YYYY-MM-DD", domain.ErrInvalidInput)
		}
		opts = append(opts, domain.OnDay(d))
	}

	if count := r.URL.Query().Get("count"); count != "" {
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return domain.Query{}, fmt.Errorf("%w: count must be a non-negative integer", domain.ErrInvalidInput)
		}
		opts = append(opts, domain.Limit(n))
	}

	q := domain.NewQuery(chi.URLParam(r, "id"), opts...)
	if err := q.Validate(); err != nil {
		return domain.Query{}, err
	}
	return q, nil
}
