// Package store is the boundary to the durable event store. Handlers only see
// simple query/insert operations; the realtime path additionally observes row
// inserts through database.Pubsub.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/scanradar/scanradar/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrExpired marks a QR code whose expiry timestamp has elapsed.
	ErrExpired  = errors.New("expired")
	ErrConflict = errors.New("conflict")
)

// Overview backs the dashboard analytics endpoint.
type Overview struct {
	TotalCampaigns  int `json:"totalCampaigns"`
	ActiveCampaigns int `json:"activeCampaigns"`
	TotalScans      int `json:"totalScans"`
	TotalSubmission int `json:"totalSubmissions"`
}

type Store interface {
	// Users
	CreateUser(ctx context.Context, email, name, passwordHash string) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)

	// Campaigns, always scoped by owner
	CreateCampaign(ctx context.Context, campaign model.Campaign) (model.Campaign, error)
	ListCampaigns(ctx context.Context, userID int64) ([]model.Campaign, error)
	GetCampaign(ctx context.Context, id, userID int64) (model.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign model.Campaign) (model.Campaign, error)
	DeleteCampaign(ctx context.Context, id, userID int64) error
	CampaignOwnedBy(ctx context.Context, campaignID, userID int64) (bool, error)

	// Forms
	CreateForm(ctx context.Context, form model.Form) (model.Form, error)
	GetForm(ctx context.Context, id int64) (model.Form, error)

	// QR codes
	CreateQRCode(ctx context.Context, qr model.QRCode) (model.QRCode, error)
	GetQRCode(ctx context.Context, id, userID int64) (model.QRCode, error)
	ListQRCodes(ctx context.Context, campaignID, userID int64) ([]model.QRCode, error)
	UpdateQRCode(ctx context.Context, qr model.QRCode, userID int64) (model.QRCode, error)
	// ResolveActiveQR looks up a QR code by public slug. Inactive codes are
	// ErrNotFound, elapsed ones ErrExpired.
	ResolveActiveQR(ctx context.Context, slug string) (model.QRCode, error)
	// ResolveCampaign loads a campaign (with its form) without owner scoping,
	// for public QR resolution.
	ResolveCampaign(ctx context.Context, campaignID int64) (model.Campaign, error)

	// Events, immutable once inserted
	InsertScanEvent(ctx context.Context, event model.ScanEvent) (model.ScanEvent, error)
	InsertSubmission(ctx context.Context, submission model.FormSubmission) (model.FormSubmission, error)

	// Analytics
	CampaignScans(ctx context.Context, campaignID int64, since, until time.Time) ([]model.ScanEvent, error)
	CampaignSubmissions(ctx context.Context, campaignID int64, since, until time.Time) ([]model.FormSubmission, error)
	DashboardOverview(ctx context.Context, userID int64) (Overview, error)
	RecentScans(ctx context.Context, userID int64, limit int) ([]model.ScanEvent, error)
}
