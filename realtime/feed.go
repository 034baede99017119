package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/scanradar/scanradar/database"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/model"
)

// changeFeedRow mirrors the JSON payload the insert triggers attach to each
// notification: the referencing ids plus the persisted row under "data".
type changeFeedRow struct {
	CampaignID int64 `json:"campaign_id"`
	QRCodeID   int64 `json:"qr_code_id"`
	FormID     int64 `json:"form_id"`
	Data       struct {
		ID           int64           `json:"id"`
		CreatedAt    time.Time       `json:"created_at"`
		LocationData *model.Location `json:"location_data"`
		Metadata     map[string]any  `json:"metadata"`
		Data         map[string]any  `json:"data"`
	} `json:"data"`
}

// ListenChangeFeed subscribes the hub to the event store's notification
// channel, a delivery path redundant with the in-process publish after every
// insert. A failure here degrades the system to single-path delivery; the
// caller logs and continues.
func ListenChangeFeed(ps database.Pubsub, hub *Hub) error {
	_, err := ps.Subscribe("scan_event", func(_ context.Context, payload []byte) {
		row, ok := parseChangeFeedRow("scan_event", payload)
		if !ok {
			return
		}

		city := ""
		if row.Data.LocationData != nil {
			city = row.Data.LocationData.City
		}
		hub.Publish(RoomKey(row.CampaignID),
			ScanEvent(row.QRCodeID, row.CampaignID, row.Data.ID, row.Data.CreatedAt, city, metadataDeviceType(row.Data.Metadata)))
	})
	if err != nil {
		return err
	}

	_, err = ps.Subscribe("form_submission", func(_ context.Context, payload []byte) {
		row, ok := parseChangeFeedRow("form_submission", payload)
		if !ok {
			return
		}
		hub.Publish(RoomKey(row.CampaignID),
			SubmissionEvent(row.FormID, row.CampaignID, row.Data.ID, row.Data.CreatedAt, row.Data.Data))
	})
	return err
}

func parseChangeFeedRow(channel string, payload []byte) (row changeFeedRow, ok bool) {
	err := json.Unmarshal(payload, &row)
	if err != nil {
		log.Warnf("realtime.feed.%s.parse: %s", channel, err)
		return row, false
	}
	return row, true
}

func metadataDeviceType(metadata map[string]any) string {
	device, _ := metadata["device"].(map[string]any)
	deviceType, _ := device["type"].(string)
	return deviceType
}
