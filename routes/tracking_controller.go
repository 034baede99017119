package routes

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/enrich"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/model"
	"github.com/scanradar/scanradar/realtime"
	"github.com/scanradar/scanradar/store"
)

type trackScanRequest struct {
	UserUUID string         `json:"userUuid"`
	Metadata map[string]any `json:"metadata"`
}

// TrackScan records a public QR scan: resolve the slug, enrich the request
// fingerprint, persist the event, then notify the campaign room. The event is
// durable before anything is broadcast.
func TrackScan(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		body := trackScanRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil && !errors.Is(err, io.EOF) {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		qr, err := app.ResolveActiveQR(r.Context(), slug)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.LogNotFound(w, "track_scan.resolve_slug", slug)
			return
		case errors.Is(err, store.ErrExpired):
			httpx.LogStatus(w, http.StatusGone, log.DebugLevel, "track_scan.expired")
			return
		case err != nil:
			httpx.LogInternalError(w, "db.resolve_slug", err)
			return
		}

		userUuid := body.UserUUID
		if userUuid == "" {
			userUuid = uuid.NewString()
		}

		ip := httpx.ClientIP(r)
		info := enrich.Parse(r.UserAgent())
		location := app.Geo.Resolve(ip)

		event, err := app.InsertScanEvent(r.Context(), model.ScanEvent{
			QRCodeID:           qr.ID,
			CampaignID:         qr.CampaignID,
			UserUUID:           userUuid,
			IPAddress:          ip,
			UserAgent:          r.UserAgent(),
			BrowserFingerprint: enrich.Fingerprint(info),
			LocationData:       location,
			Metadata:           enrich.MergeMetadata(body.Metadata, info),
		})
		if err != nil {
			httpx.LogInternalError(w, "db.insert_scan", err)
			return
		}

		city := ""
		if location != nil {
			city = location.City
		}
		app.Events.Publish(realtime.RoomKey(qr.CampaignID),
			realtime.ScanEvent(qr.ID, qr.CampaignID, event.ID, event.CreatedAt, city, info.Device.Type))

		render.JSON(w, r, map[string]any{
			"success":  true,
			"userUuid": userUuid,
			"scanId":   event.ID,
		})
	}
}

type submitFormRequest struct {
	Data     map[string]any `json:"data"`
	UserUUID string         `json:"userUuid"`
	QRCodeID *int64         `json:"qrCodeId"`
	Metadata map[string]any `json:"metadata"`
}

// SubmitForm records a lead-capture submission and notifies the room of the
// form's campaign.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.ParseInt(chi.URLParam(r, "formId"), 10, 64)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.formId")
			return
		}

		body := submitFormRequest{}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.GetForm(r.Context(), formId)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.LogNotFound(w, "submit_form.get_form", formId)
			return
		case err != nil:
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		submission, err := app.InsertSubmission(r.Context(), model.FormSubmission{
			FormID:   form.ID,
			QRCodeID: body.QRCodeID,
			UserUUID: body.UserUUID,
			Data:     body.Data,
			Metadata: body.Metadata,
		})
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission", err)
			return
		}

		app.Events.Publish(realtime.RoomKey(form.CampaignID),
			realtime.SubmissionEvent(form.ID, form.CampaignID, submission.ID, submission.CreatedAt, body.Data))

		render.JSON(w, r, map[string]any{
			"success":      true,
			"submissionId": submission.ID,
		})
	}
}
