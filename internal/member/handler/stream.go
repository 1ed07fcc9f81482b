package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/platform/httputil"
	"policardmed/pkg/requestcontext"
)

// HandleStream pushes every member snapshot as a Server-Sent Event. Each
// "snapshot" event replaces the client's list. A failing subscription sends
// one "error" event and ends the stream. The subscription is released when the
// client disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	snapshots, err := h.service.Subscribe(ctx)
	if err != nil {
		h.fail(w, r, "failed to subscribe to members", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.InfoContext(ctx, "member stream opened", "request_id", requestID)
	defer h.logger.InfoContext(ctx, "member stream closed", "request_id", requestID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, open := <-snapshots:
			if !open {
				return
			}
			if snap.Err != nil {
				h.logger.WarnContext(ctx, "member stream failed",
					"request_id", requestID,
					"error", snap.Err,
				)
				body := httputil.ErrorResponse{Error: string(dErrors.CodeOf(snap.Err))}
				if dErrors.CodeOf(snap.Err) != dErrors.CodeInternal {
					body.ErrorDescription = dErrors.MessageOf(snap.Err)
				}
				_ = writeEvent(w, "error", body)
				flusher.Flush()
				return
			}
			if err := writeEvent(w, "snapshot", toMemberList(snap.Members)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
