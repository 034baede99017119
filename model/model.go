package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Campaign struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"userId"`
	Name      string         `json:"name"`
	Type      string         `json:"type"` // link, form
	Config    map[string]any `json:"config"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	QRCodes []QRCode `json:"qrCodes,omitempty"`
	Form    *Form    `json:"form,omitempty"`
}

type QRCode struct {
	ID         int64      `json:"id"`
	CampaignID int64      `json:"campaignId"`
	Slug       string     `json:"slug"`
	Name       string     `json:"name"`
	Settings   QRSettings `json:"settings"`
	IsActive   bool       `json:"isActive"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type QRSettings struct {
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Size            int    `json:"size,omitempty"`
}

type Form struct {
	ID          int64       `json:"id"`
	CampaignID  int64       `json:"campaignId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Fields      []FormField `json:"fields"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type FormField struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Options  any    `json:"options,omitempty"`
}

// Location is the coarse geolocation attached to a scan event.
// Nil means the client IP was private or unresolvable.
type Location struct {
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

type ScanEvent struct {
	ID                 int64          `json:"id"`
	QRCodeID           int64          `json:"qrCodeId"`
	CampaignID         int64          `json:"campaignId"`
	UserUUID           string         `json:"userUuid"`
	IPAddress          string         `json:"ipAddress"`
	UserAgent          string         `json:"userAgent"`
	BrowserFingerprint string         `json:"browserFingerprint"`
	LocationData       *Location      `json:"locationData,omitempty"`
	Metadata           map[string]any `json:"metadata"`
	CreatedAt          time.Time      `json:"createdAt"`
}

type FormSubmission struct {
	ID        int64          `json:"id"`
	FormID    int64          `json:"formId"`
	QRCodeID  *int64         `json:"qrCodeId,omitempty"`
	UserUUID  string         `json:"userUuid"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}
