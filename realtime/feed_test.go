package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanradar/scanradar/database"
)

func TestChangeFeedDeliversScans(t *testing.T) {
	ps := database.NewPubsubInMemory()
	hub := NewHub(fakeOwners{owned: map[int64]int64{42: 7}})
	require.NoError(t, ListenChangeFeed(ps, hub))

	c := newTestClient(hub, 7, 4)
	hub.joinRoom(context.Background(), c, 42)
	recv(t, c)

	payload := []byte(`{
		"campaign_id": 42,
		"qr_code_id": 5,
		"data": {
			"id": 1001,
			"created_at": "2026-08-28T10:00:00Z",
			"location_data": {"city": "Milan", "country": "IT"},
			"metadata": {"device": {"type": "mobile"}}
		}
	}`)
	require.NoError(t, ps.Publish("scan_event", payload))

	msg := recv(t, c)
	assert.Equal(t, EventScan, msg.Event)
	scan, ok := msg.Data.(ScanPayload)
	require.True(t, ok)
	assert.EqualValues(t, 5, scan.QRCodeID)
	assert.EqualValues(t, 42, scan.CampaignID)
	assert.Equal(t, "Milan", scan.Location)
	assert.Equal(t, "mobile", scan.Device)
}

func TestChangeFeedDeliversSubmissions(t *testing.T) {
	ps := database.NewPubsubInMemory()
	hub := NewHub(fakeOwners{owned: map[int64]int64{42: 7}})
	require.NoError(t, ListenChangeFeed(ps, hub))

	c := newTestClient(hub, 7, 4)
	hub.joinRoom(context.Background(), c, 42)
	recv(t, c)

	payload := []byte(`{
		"campaign_id": 42,
		"form_id": 9,
		"data": {
			"id": 2002,
			"created_at": "2026-08-28T10:00:00Z",
			"data": {"email": "bob@example.com"}
		}
	}`)
	require.NoError(t, ps.Publish("form_submission", payload))

	msg := recv(t, c)
	assert.Equal(t, EventFormSubmission, msg.Event)
	sub, ok := msg.Data.(SubmissionPayload)
	require.True(t, ok)
	assert.EqualValues(t, 9, sub.FormID)
	assert.Equal(t, map[string]any{"email": "bob@example.com"}, sub.Data)
}

func TestChangeFeedSkipsMalformedPayloads(t *testing.T) {
	ps := database.NewPubsubInMemory()
	hub := NewHub(fakeOwners{owned: map[int64]int64{42: 7}})
	require.NoError(t, ListenChangeFeed(ps, hub))

	c := newTestClient(hub, 7, 4)
	hub.joinRoom(context.Background(), c, 42)
	recv(t, c)

	require.NoError(t, ps.Publish("scan_event", []byte("not json")))
	assertNoMessage(t, c)
}

func TestChangeFeedEchoIsDeduplicated(t *testing.T) {
	ps := database.NewPubsubInMemory()
	hub := NewHub(fakeOwners{owned: map[int64]int64{42: 7}})
	require.NoError(t, ListenChangeFeed(ps, hub))

	c := newTestClient(hub, 7, 4)
	hub.joinRoom(context.Background(), c, 42)
	recv(t, c)

	// the ingestion handler publishes first, then the change feed replays
	// the same insert
	hub.Publish(RoomKey(42), ScanEvent(5, 42, 1001, time.Now(), "", ""))
	require.NoError(t, ps.Publish("scan_event", []byte(`{
		"campaign_id": 42,
		"qr_code_id": 5,
		"data": {"id": 1001, "created_at": "2026-08-28T10:00:00Z"}
	}`)))

	recv(t, c)
	assertNoMessage(t, c)
}
