package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/enrich"
	"github.com/scanradar/scanradar/model"
	"github.com/scanradar/scanradar/realtime"
	"github.com/scanradar/scanradar/store"
)

const testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// fakeStore backs handler tests; only the methods a test installs are usable.
type fakeStore struct {
	store.Store

	resolveActiveQR  func(slug string) (model.QRCode, error)
	insertScanEvent  func(event model.ScanEvent) (model.ScanEvent, error)
	getForm          func(id int64) (model.Form, error)
	insertSubmission func(sub model.FormSubmission) (model.FormSubmission, error)

	calls *[]string
}

func (f *fakeStore) record(name string) {
	if f.calls != nil {
		*f.calls = append(*f.calls, name)
	}
}

func (f *fakeStore) ResolveActiveQR(_ context.Context, slug string) (model.QRCode, error) {
	return f.resolveActiveQR(slug)
}

func (f *fakeStore) InsertScanEvent(_ context.Context, event model.ScanEvent) (model.ScanEvent, error) {
	f.record("insert")
	return f.insertScanEvent(event)
}

func (f *fakeStore) GetForm(_ context.Context, id int64) (model.Form, error) {
	return f.getForm(id)
}

func (f *fakeStore) InsertSubmission(_ context.Context, sub model.FormSubmission) (model.FormSubmission, error) {
	f.record("insert")
	return f.insertSubmission(sub)
}

type publishedEvent struct {
	room  string
	event realtime.Event
}

type recordingPublisher struct {
	events []publishedEvent
	calls  *[]string
}

func (p *recordingPublisher) Publish(room string, event realtime.Event) {
	if p.calls != nil {
		*p.calls = append(*p.calls, "publish")
	}
	p.events = append(p.events, publishedEvent{room, event})
}

func trackingRouter(fake *fakeStore, pub *recordingPublisher) chi.Router {
	a := app.App{
		Store:  fake,
		Events: pub,
		Geo:    enrich.NoopGeoResolver(),
	}
	r := chi.NewRouter()
	r.Post("/track/{slug}", TrackScan(a))
	r.Post("/track/form/{formId}", SubmitForm(a))
	return r
}

func postJSON(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	r.Header.Set("User-Agent", testUserAgent)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestTrackScanUnknownSlug(t *testing.T) {
	pub := &recordingPublisher{}
	fake := &fakeStore{
		resolveActiveQR: func(string) (model.QRCode, error) {
			return model.QRCode{}, store.ErrNotFound
		},
	}

	w := postJSON(t, trackingRouter(fake, pub), "/track/deadbeef", map[string]any{})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, pub.events)
}

func TestTrackScanExpiredSlug(t *testing.T) {
	pub := &recordingPublisher{}
	fake := &fakeStore{
		resolveActiveQR: func(string) (model.QRCode, error) {
			return model.QRCode{}, store.ErrExpired
		},
	}

	w := postJSON(t, trackingRouter(fake, pub), "/track/deadbeef", map[string]any{})

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Empty(t, pub.events)
}

func TestTrackScanPersistsThenBroadcasts(t *testing.T) {
	var calls []string
	var inserted model.ScanEvent
	now := time.Now()

	pub := &recordingPublisher{calls: &calls}
	fake := &fakeStore{
		calls: &calls,
		resolveActiveQR: func(slug string) (model.QRCode, error) {
			assert.Equal(t, "deadbeef", slug)
			return model.QRCode{ID: 5, CampaignID: 42, Slug: slug}, nil
		},
		insertScanEvent: func(event model.ScanEvent) (model.ScanEvent, error) {
			inserted = event
			event.ID = 1001
			event.CreatedAt = now
			return event, nil
		},
	}

	w := postJSON(t, trackingRouter(fake, pub), "/track/deadbeef", map[string]any{
		"userUuid": "visitor-1",
		"metadata": map[string]any{"source": "email"},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool   `json:"success"`
		UserUUID string `json:"userUuid"`
		ScanID   int64  `json:"scanId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "visitor-1", resp.UserUUID)
	assert.EqualValues(t, 1001, resp.ScanID)

	// persisted row carries the enriched fingerprint and merged metadata
	assert.EqualValues(t, 5, inserted.QRCodeID)
	assert.EqualValues(t, 42, inserted.CampaignID)
	assert.Equal(t, "visitor-1", inserted.UserUUID)
	assert.Equal(t, testUserAgent, inserted.UserAgent)
	assert.Contains(t, inserted.BrowserFingerprint, "Chrome")
	assert.Equal(t, "email", inserted.Metadata["source"])
	assert.Contains(t, inserted.Metadata, "browser")
	assert.Contains(t, inserted.Metadata, "device")

	// the event becomes durable before anyone hears about it
	assert.Equal(t, []string{"insert", "publish"}, calls)

	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.RoomKey(42), pub.events[0].room)
	scan, ok := pub.events[0].event.Data.(realtime.ScanPayload)
	require.True(t, ok)
	assert.EqualValues(t, 42, scan.CampaignID)
	assert.Equal(t, "desktop", scan.Device)
}

func TestTrackScanGeneratesUserUUID(t *testing.T) {
	pub := &recordingPublisher{}
	fake := &fakeStore{
		resolveActiveQR: func(string) (model.QRCode, error) {
			return model.QRCode{ID: 5, CampaignID: 42}, nil
		},
		insertScanEvent: func(event model.ScanEvent) (model.ScanEvent, error) {
			assert.NotEmpty(t, event.UserUUID)
			event.ID = 1
			return event, nil
		},
	}

	// no body at all is fine for anonymous scans
	r := httptest.NewRequest("POST", "/track/deadbeef", nil)
	r.Header.Set("User-Agent", testUserAgent)
	w := httptest.NewRecorder()
	trackingRouter(fake, pub).ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["userUuid"])
}

func TestTrackScanInsertFailure(t *testing.T) {
	pub := &recordingPublisher{}
	fake := &fakeStore{
		resolveActiveQR: func(string) (model.QRCode, error) {
			return model.QRCode{ID: 5, CampaignID: 42}, nil
		},
		insertScanEvent: func(model.ScanEvent) (model.ScanEvent, error) {
			return model.ScanEvent{}, errors.New("db down")
		},
	}

	w := postJSON(t, trackingRouter(fake, pub), "/track/deadbeef", map[string]any{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, pub.events, "nothing is broadcast when the insert fails")
}

func TestSubmitForm(t *testing.T) {
	var calls []string
	pub := &recordingPublisher{calls: &calls}
	fake := &fakeStore{
		calls: &calls,
		getForm: func(id int64) (model.Form, error) {
			assert.EqualValues(t, 9, id)
			return model.Form{ID: 9, CampaignID: 42}, nil
		},
		insertSubmission: func(sub model.FormSubmission) (model.FormSubmission, error) {
			assert.EqualValues(t, 9, sub.FormID)
			assert.Equal(t, map[string]any{"email": "bob@example.com"}, sub.Data)
			sub.ID = 2002
			sub.CreatedAt = time.Now()
			return sub, nil
		},
	}

	w := postJSON(t, trackingRouter(fake, pub), "/track/form/9", map[string]any{
		"data":     map[string]any{"email": "bob@example.com"},
		"userUuid": "visitor-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"insert", "publish"}, calls)

	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.RoomKey(42), pub.events[0].room)
	sub, ok := pub.events[0].event.Data.(realtime.SubmissionPayload)
	require.True(t, ok)
	assert.EqualValues(t, 9, sub.FormID)
	assert.EqualValues(t, 42, sub.CampaignID)
}

func TestSubmitFormUnknownForm(t *testing.T) {
	pub := &recordingPublisher{}
	fake := &fakeStore{
		getForm: func(int64) (model.Form, error) {
			return model.Form{}, store.ErrNotFound
		},
	}

	w := postJSON(t, trackingRouter(fake, pub), "/track/form/9", map[string]any{
		"data": map[string]any{},
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, pub.events)
}

func TestSubmitFormBadFormID(t *testing.T) {
	pub := &recordingPublisher{}
	w := postJSON(t, trackingRouter(&fakeStore{}, pub), "/track/form/nope", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pub.events)
}
