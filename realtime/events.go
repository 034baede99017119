package realtime

import (
	"fmt"
	"time"
)

// Server-to-client event names.
const (
	EventScan           = "scan_event"
	EventFormSubmission = "form_submission"
	EventJoinedCampaign = "joined_campaign"
	EventLeftCampaign   = "left_campaign"
	EventError          = "error"
)

// Client-to-server event names.
const (
	EventJoinCampaign  = "join_campaign"
	EventLeaveCampaign = "leave_campaign"
)

// Event is one outbound notification. Key, when set, deduplicates deliveries
// of the same logical event arriving over both the in-process path and the
// change feed.
type Event struct {
	Name string
	Key  string
	Data any
}

// Message is the wire shape of both directions of the realtime channel.
type Message struct {
	Event      string `json:"event"`
	CampaignID int64  `json:"campaignId,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// Publisher delivers an event to every member of a room. Implemented by Hub;
// ingestion handlers depend on this interface only.
type Publisher interface {
	Publish(room string, event Event)
}

// RoomKey names the subscriber group of one campaign.
func RoomKey(campaignID int64) string {
	return fmt.Sprintf("campaign:%d", campaignID)
}

// ScanPayload is broadcast on every recorded scan.
type ScanPayload struct {
	Type       string    `json:"type"`
	QRCodeID   int64     `json:"qrCodeId"`
	CampaignID int64     `json:"campaignId"`
	Timestamp  time.Time `json:"timestamp"`
	Location   string    `json:"location,omitempty"`
	Device     string    `json:"device"`
}

func ScanEvent(qrCodeID, campaignID, eventID int64, timestamp time.Time, city, device string) Event {
	if device == "" {
		device = "desktop"
	}
	return Event{
		Name: EventScan,
		Key:  fmt.Sprintf("scan:%d", eventID),
		Data: ScanPayload{
			Type:       "scan",
			QRCodeID:   qrCodeID,
			CampaignID: campaignID,
			Timestamp:  timestamp,
			Location:   city,
			Device:     device,
		},
	}
}

// SubmissionPayload is broadcast on every recorded form submission.
type SubmissionPayload struct {
	Type       string         `json:"type"`
	FormID     int64          `json:"formId"`
	CampaignID int64          `json:"campaignId"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

func SubmissionEvent(formID, campaignID, submissionID int64, timestamp time.Time, data map[string]any) Event {
	return Event{
		Name: EventFormSubmission,
		Key:  fmt.Sprintf("submission:%d", submissionID),
		Data: SubmissionPayload{
			Type:       "form_submission",
			FormID:     formID,
			CampaignID: campaignID,
			Timestamp:  timestamp,
			Data:       data,
		},
	}
}
