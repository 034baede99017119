package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/scanradar/scanradar/model"
)

type postgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) Store {
	return &postgresStore{db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (s *postgresStore) CreateUser(ctx context.Context, email, name, passwordHash string) (model.User, error) {
	user := model.User{Email: email, Name: name}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash) VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		email,
		name,
		passwordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return model.User{}, ErrConflict
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *postgresStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	user := model.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *postgresStore) CreateCampaign(ctx context.Context, campaign model.Campaign) (model.Campaign, error) {
	configJson, err := marshalJSON(campaign.Config)
	if err != nil {
		return model.Campaign{}, err
	}

	if campaign.Type == "" {
		campaign.Type = "link"
	}
	campaign.Status = "active"

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (user_id, name, type, config) VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at, updated_at`,
		campaign.UserID,
		campaign.Name,
		campaign.Type,
		configJson,
	).Scan(&campaign.ID, &campaign.Status, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return model.Campaign{}, err
	}
	return campaign, nil
}

func scanCampaign(row interface{ Scan(...any) error }) (model.Campaign, error) {
	campaign := model.Campaign{}
	var configJson []byte
	err := row.Scan(
		&campaign.ID, &campaign.UserID, &campaign.Name, &campaign.Type,
		&configJson, &campaign.Status, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	if err != nil {
		return model.Campaign{}, err
	}
	err = unmarshalJSON(configJson, &campaign.Config)
	return campaign, err
}

func (s *postgresStore) ListCampaigns(ctx context.Context, userID int64) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, config, status, created_at, updated_at
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []model.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range campaigns {
		campaigns[i].QRCodes, err = s.campaignQRCodes(ctx, campaigns[i].ID)
		if err != nil {
			return nil, err
		}
		campaigns[i].Form, err = s.campaignForm(ctx, campaigns[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return campaigns, nil
}

func (s *postgresStore) GetCampaign(ctx context.Context, id, userID int64) (model.Campaign, error) {
	campaign, err := scanCampaign(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, config, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Campaign{}, ErrNotFound
	}
	if err != nil {
		return model.Campaign{}, err
	}

	campaign.QRCodes, err = s.campaignQRCodes(ctx, campaign.ID)
	if err != nil {
		return model.Campaign{}, err
	}
	campaign.Form, err = s.campaignForm(ctx, campaign.ID)
	if err != nil {
		return model.Campaign{}, err
	}
	return campaign, nil
}

func (s *postgresStore) UpdateCampaign(ctx context.Context, campaign model.Campaign) (model.Campaign, error) {
	configJson, err := marshalJSON(campaign.Config)
	if err != nil {
		return model.Campaign{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE campaigns
		SET
			name = $1,
			status = $2,
			config = $3,
			updated_at = now()
		WHERE id = $4 AND user_id = $5
		RETURNING type, created_at, updated_at`,
		campaign.Name,
		campaign.Status,
		configJson,
		campaign.ID,
		campaign.UserID,
	).Scan(&campaign.Type, &campaign.CreatedAt, &campaign.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Campaign{}, ErrNotFound
	}
	if err != nil {
		return model.Campaign{}, err
	}
	return campaign, nil
}

func (s *postgresStore) DeleteCampaign(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM campaigns WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) CampaignOwnedBy(ctx context.Context, campaignID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM campaigns WHERE id = $1 AND user_id = $2`,
		campaignID,
		userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *postgresStore) CreateForm(ctx context.Context, form model.Form) (model.Form, error) {
	fieldsJson, err := json.Marshal(form.Fields)
	if err != nil {
		return model.Form{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO forms (campaign_id, title, description, fields) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		form.CampaignID,
		form.Title,
		form.Description,
		fieldsJson,
	).Scan(&form.ID, &form.CreatedAt)
	if err != nil {
		return model.Form{}, err
	}
	return form, nil
}

func (s *postgresStore) GetForm(ctx context.Context, id int64) (model.Form, error) {
	form := model.Form{}
	var fieldsJson []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, title, description, fields, created_at
		FROM forms
		WHERE id = $1`,
		id,
	).Scan(&form.ID, &form.CampaignID, &form.Title, &form.Description, &fieldsJson, &form.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Form{}, ErrNotFound
	}
	if err != nil {
		return model.Form{}, err
	}
	err = unmarshalJSON(fieldsJson, &form.Fields)
	return form, err
}

func (s *postgresStore) campaignForm(ctx context.Context, campaignID int64) (*model.Form, error) {
	form := model.Form{}
	var fieldsJson []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, title, description, fields, created_at
		FROM forms
		WHERE campaign_id = $1
		ORDER BY id
		LIMIT 1`,
		campaignID,
	).Scan(&form.ID, &form.CampaignID, &form.Title, &form.Description, &fieldsJson, &form.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	err = unmarshalJSON(fieldsJson, &form.Fields)
	return &form, err
}

// generateSlug produces the 8-hex-character public token of a QR code.
func generateSlug() (string, error) {
	raw := make([]byte, 4)
	_, err := rand.Read(raw)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func (s *postgresStore) CreateQRCode(ctx context.Context, qr model.QRCode) (model.QRCode, error) {
	settingsJson, err := marshalJSON(qr.Settings)
	if err != nil {
		return model.QRCode{}, err
	}

	// retry on the off chance the random slug collides
	for attempt := 0; attempt < 5; attempt++ {
		qr.Slug, err = generateSlug()
		if err != nil {
			return model.QRCode{}, err
		}

		err = s.db.QueryRowContext(ctx, `
			INSERT INTO qr_codes (campaign_id, slug, name, settings, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, is_active, created_at`,
			qr.CampaignID,
			qr.Slug,
			qr.Name,
			settingsJson,
			qr.ExpiresAt,
		).Scan(&qr.ID, &qr.IsActive, &qr.CreatedAt)
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return model.QRCode{}, err
		}
		return qr, nil
	}
	return model.QRCode{}, fmt.Errorf("generate slug: %w", ErrConflict)
}

func scanQRCode(row interface{ Scan(...any) error }) (model.QRCode, error) {
	qr := model.QRCode{}
	var settingsJson []byte
	err := row.Scan(
		&qr.ID, &qr.CampaignID, &qr.Slug, &qr.Name,
		&settingsJson, &qr.IsActive, &qr.ExpiresAt, &qr.CreatedAt,
	)
	if err != nil {
		return model.QRCode{}, err
	}
	err = unmarshalJSON(settingsJson, &qr.Settings)
	return qr, err
}

func (s *postgresStore) GetQRCode(ctx context.Context, id, userID int64) (model.QRCode, error) {
	qr, err := scanQRCode(s.db.QueryRowContext(ctx, `
		SELECT q.id, q.campaign_id, q.slug, q.name, q.settings, q.is_active, q.expires_at, q.created_at
		FROM qr_codes q
		INNER JOIN campaigns c ON (c.id = q.campaign_id)
		WHERE q.id = $1 AND c.user_id = $2`,
		id,
		userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QRCode{}, ErrNotFound
	}
	return qr, err
}

func (s *postgresStore) campaignQRCodes(ctx context.Context, campaignID int64) ([]model.QRCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, slug, name, settings, is_active, expires_at, created_at
		FROM qr_codes
		WHERE campaign_id = $1
		ORDER BY created_at DESC`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []model.QRCode{}
	for rows.Next() {
		qr, err := scanQRCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, qr)
	}
	return codes, rows.Err()
}

func (s *postgresStore) ListQRCodes(ctx context.Context, campaignID, userID int64) ([]model.QRCode, error) {
	owned, err := s.CampaignOwnedBy(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrNotFound
	}
	return s.campaignQRCodes(ctx, campaignID)
}

func (s *postgresStore) UpdateQRCode(ctx context.Context, qr model.QRCode, userID int64) (model.QRCode, error) {
	settingsJson, err := marshalJSON(qr.Settings)
	if err != nil {
		return model.QRCode{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE qr_codes q
		SET
			name = $1,
			settings = $2,
			expires_at = $3,
			is_active = $4
		FROM campaigns c
		WHERE q.id = $5
			AND c.id = q.campaign_id
			AND c.user_id = $6
		RETURNING q.campaign_id, q.slug, q.created_at`,
		qr.Name,
		settingsJson,
		qr.ExpiresAt,
		qr.IsActive,
		qr.ID,
		userID,
	).Scan(&qr.CampaignID, &qr.Slug, &qr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QRCode{}, ErrNotFound
	}
	if err != nil {
		return model.QRCode{}, err
	}
	return qr, nil
}

func (s *postgresStore) ResolveActiveQR(ctx context.Context, slug string) (model.QRCode, error) {
	qr, err := scanQRCode(s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, slug, name, settings, is_active, expires_at, created_at
		FROM qr_codes
		WHERE slug = $1 AND is_active = TRUE`,
		slug,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QRCode{}, ErrNotFound
	}
	if err != nil {
		return model.QRCode{}, err
	}

	if qr.ExpiresAt != nil && qr.ExpiresAt.Before(time.Now()) {
		return model.QRCode{}, ErrExpired
	}
	return qr, nil
}

func (s *postgresStore) ResolveCampaign(ctx context.Context, campaignID int64) (model.Campaign, error) {
	campaign, err := scanCampaign(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, config, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1`,
		campaignID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Campaign{}, ErrNotFound
	}
	if err != nil {
		return model.Campaign{}, err
	}

	campaign.Form, err = s.campaignForm(ctx, campaign.ID)
	if err != nil {
		return model.Campaign{}, err
	}
	return campaign, nil
}

func (s *postgresStore) InsertScanEvent(ctx context.Context, event model.ScanEvent) (model.ScanEvent, error) {
	metadataJson, err := marshalJSON(event.Metadata)
	if err != nil {
		return model.ScanEvent{}, err
	}
	var locationJson []byte
	if event.LocationData != nil {
		locationJson, err = json.Marshal(event.LocationData)
		if err != nil {
			return model.ScanEvent{}, err
		}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO scan_events
			(qr_code_id, campaign_id, user_uuid, ip_address, user_agent, browser_fingerprint, location_data, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		event.QRCodeID,
		event.CampaignID,
		event.UserUUID,
		event.IPAddress,
		event.UserAgent,
		event.BrowserFingerprint,
		locationJson,
		metadataJson,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return model.ScanEvent{}, err
	}
	return event, nil
}

func (s *postgresStore) InsertSubmission(ctx context.Context, submission model.FormSubmission) (model.FormSubmission, error) {
	dataJson, err := marshalJSON(submission.Data)
	if err != nil {
		return model.FormSubmission{}, err
	}
	metadataJson, err := marshalJSON(submission.Metadata)
	if err != nil {
		return model.FormSubmission{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO form_submissions (form_id, qr_code_id, user_uuid, data, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		submission.FormID,
		submission.QRCodeID,
		submission.UserUUID,
		dataJson,
		metadataJson,
	).Scan(&submission.ID, &submission.CreatedAt)
	if err != nil {
		return model.FormSubmission{}, err
	}
	return submission, nil
}

func scanScanEvent(row interface{ Scan(...any) error }) (model.ScanEvent, error) {
	event := model.ScanEvent{}
	var locationJson, metadataJson []byte
	err := row.Scan(
		&event.ID, &event.QRCodeID, &event.CampaignID, &event.UserUUID,
		&event.IPAddress, &event.UserAgent, &event.BrowserFingerprint,
		&locationJson, &metadataJson, &event.CreatedAt,
	)
	if err != nil {
		return model.ScanEvent{}, err
	}
	if len(locationJson) > 0 {
		err = json.Unmarshal(locationJson, &event.LocationData)
		if err != nil {
			return model.ScanEvent{}, err
		}
	}
	err = unmarshalJSON(metadataJson, &event.Metadata)
	return event, err
}

const scanEventColumns = `
	id, qr_code_id, campaign_id, user_uuid,
	ip_address, user_agent, browser_fingerprint,
	location_data, metadata, created_at`

func (s *postgresStore) CampaignScans(ctx context.Context, campaignID int64, since, until time.Time) ([]model.ScanEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scanEventColumns+`
		FROM scan_events
		WHERE campaign_id = $1
			AND created_at BETWEEN $2 AND $3
		ORDER BY created_at`,
		campaignID,
		since,
		until,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.ScanEvent{}
	for rows.Next() {
		event, err := scanScanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *postgresStore) CampaignSubmissions(ctx context.Context, campaignID int64, since, until time.Time) ([]model.FormSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.form_id, s.qr_code_id, s.user_uuid, s.data, s.metadata, s.created_at
		FROM form_submissions s
		INNER JOIN forms f ON (f.id = s.form_id)
		WHERE f.campaign_id = $1
			AND s.created_at BETWEEN $2 AND $3
		ORDER BY s.created_at`,
		campaignID,
		since,
		until,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := []model.FormSubmission{}
	for rows.Next() {
		sub := model.FormSubmission{}
		var dataJson, metadataJson []byte
		err = rows.Scan(&sub.ID, &sub.FormID, &sub.QRCodeID, &sub.UserUUID, &dataJson, &metadataJson, &sub.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err = unmarshalJSON(dataJson, &sub.Data); err != nil {
			return nil, err
		}
		if err = unmarshalJSON(metadataJson, &sub.Metadata); err != nil {
			return nil, err
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

func (s *postgresStore) DashboardOverview(ctx context.Context, userID int64) (Overview, error) {
	overview := Overview{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'active'),
			(SELECT count(*) FROM scan_events e
				INNER JOIN campaigns sc ON (sc.id = e.campaign_id)
				WHERE sc.user_id = $1),
			(SELECT count(*) FROM form_submissions s
				INNER JOIN forms f ON (f.id = s.form_id)
				INNER JOIN campaigns fc ON (fc.id = f.campaign_id)
				WHERE fc.user_id = $1)
		FROM campaigns
		WHERE user_id = $1`,
		userID,
	).Scan(&overview.TotalCampaigns, &overview.ActiveCampaigns, &overview.TotalScans, &overview.TotalSubmission)
	return overview, err
}

func (s *postgresStore) RecentScans(ctx context.Context, userID int64, limit int) ([]model.ScanEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			e.id, e.qr_code_id, e.campaign_id, e.user_uuid,
			e.ip_address, e.user_agent, e.browser_fingerprint,
			e.location_data, e.metadata, e.created_at
		FROM scan_events e
		INNER JOIN campaigns c ON (c.id = e.campaign_id)
		WHERE c.user_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.ScanEvent{}
	for rows.Next() {
		event, err := scanScanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
