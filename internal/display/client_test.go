package display

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/creceideas/muralla/internal/domain"
)

func newTestClient(onChange func([]domain.Submission)) *Client {
	return NewClient("http://localhost", onChange, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func marshalEvent(t *testing.T, event domain.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func sub(id, name string) domain.Submission {
	return domain.Submission{ID: id, SenderName: name, MediaURL: "/uploads/" + id + ".jpg"}
}

func TestApplyNewImageAppends(t *testing.T) {
	c := newTestClient(nil)
	c.replaceView([]domain.Submission{sub("1", "Ana")})

	err := c.applyEvent(marshalEvent(t, domain.NewImageEvent(sub("2", "Bruno"))))
	require.NoError(t, err)

	view := c.View()
	require.Len(t, view, 2)
	require.Equal(t, "1", view[0].ID)
	require.Equal(t, "2", view[1].ID)
}

func TestApplyNewImageDeduplicatesByID(t *testing.T) {
	changes := 0
	c := newTestClient(func([]domain.Submission) { changes++ })

	// The snapshot already contains the record; the stream may deliver it
	// again when the append raced the snapshot fetch.
	c.replaceView([]domain.Submission{sub("1", "Ana")})
	require.Equal(t, 1, changes)

	err := c.applyEvent(marshalEvent(t, domain.NewImageEvent(sub("1", "Ana"))))
	require.NoError(t, err)

	require.Len(t, c.View(), 1)
	require.Equal(t, 1, changes, "duplicate apply must not notify")
}

func TestApplyUpdateImagesIsTotalOverwrite(t *testing.T) {
	c := newTestClient(nil)
	c.replaceView([]domain.Submission{sub("1", "Ana"), sub("2", "Bruno"), sub("3", "Carla")})

	replacement := []domain.Submission{sub("3", "Carla"), sub("1", "Ana")}
	err := c.applyEvent(marshalEvent(t, domain.UpdateImagesEvent(replacement)))
	require.NoError(t, err)

	view := c.View()
	require.Len(t, view, 2)
	require.Equal(t, "3", view[0].ID, "payload order must be preserved")
	require.Equal(t, "1", view[1].ID)
}

func TestApplyUpdateImagesEmptiesView(t *testing.T) {
	c := newTestClient(nil)
	c.replaceView([]domain.Submission{sub("1", "Ana")})

	err := c.applyEvent(marshalEvent(t, domain.UpdateImagesEvent(nil)))
	require.NoError(t, err)
	require.Empty(t, c.View())
}

func TestApplyEventIgnoresUnknownTypes(t *testing.T) {
	c := newTestClient(nil)
	require.NoError(t, c.applyEvent([]byte(`{"type":"PING","data":null}`)))
	require.Error(t, c.applyEvent([]byte(`not json`)))
}

// wallServer is a minimal photo wall backend for sync tests: a snapshot
// endpoint plus a websocket endpoint that replays the given events to
// every subscriber.
type wallServer struct {
	server   *httptest.Server
	snapshot []domain.Submission
	events   chan []byte
}

func newWallServer(t *testing.T, snapshot []domain.Submission) *wallServer {
	t.Helper()

	ws := &wallServer{snapshot: snapshot, events: make(chan []byte, 16)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/images", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    ws.snapshot,
			"total":   len(ws.snapshot),
		})
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for payload := range ws.events {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	})

	ws.server = httptest.NewServer(mux)
	t.Cleanup(ws.server.Close)
	return ws
}

func TestRunSyncsSnapshotThenStream(t *testing.T) {
	server := newWallServer(t, []domain.Submission{sub("1", "Ana")})

	views := make(chan []domain.Submission, 16)
	c := NewClient(server.server.URL, func(view []domain.Submission) {
		views <- view
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// First change: the snapshot seeds the view.
	view := waitForView(t, views)
	require.Len(t, view, 1)
	require.Equal(t, "1", view[0].ID)
	require.Equal(t, StateSynced, c.State())

	// A NEW_IMAGE event appends.
	server.events <- marshalEvent(t, domain.NewImageEvent(sub("2", "Bruno")))
	view = waitForView(t, views)
	require.Len(t, view, 2)

	// A duplicate of a snapshot record is dropped silently.
	server.events <- marshalEvent(t, domain.NewImageEvent(sub("1", "Ana")))

	// An UPDATE_IMAGES event overwrites.
	server.events <- marshalEvent(t, domain.UpdateImagesEvent([]domain.Submission{sub("2", "Bruno")}))
	view = waitForView(t, views)
	require.Len(t, view, 1)
	require.Equal(t, "2", view[0].ID)
}

func TestRunReconnectsAfterDisconnect(t *testing.T) {
	server := newWallServer(t, nil)

	views := make(chan []domain.Submission, 16)
	c := NewClient(server.server.URL, func(view []domain.Submission) {
		views <- view
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitForView(t, views)

	// Dropping the stream sends every subscriber's write loop home; the
	// client must come back on its own and resynchronize from a fresh
	// snapshot.
	server.snapshot = []domain.Submission{sub("9", "Zoe")}
	close(server.events)

	deadline := time.After(10 * time.Second)
	for {
		select {
		case view := <-views:
			if len(view) == 1 && view[0].ID == "9" {
				return
			}
		case <-deadline:
			t.Fatal("client did not resynchronize after disconnect")
		}
	}
}

func waitForView(t *testing.T, views chan []domain.Submission) []domain.Submission {
	t.Helper()
	select {
	case view := <-views:
		return view
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for view change")
		return nil
	}
}
