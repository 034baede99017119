package routes

import (
	"errors"
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/model"
	"github.com/scanradar/scanradar/store"
)

type qrCodeRequest struct {
	CampaignID int64            `json:"campaignId"`
	Name       string           `json:"name"`
	Settings   model.QRSettings `json:"settings"`
	ExpiresAt  *time.Time       `json:"expiresAt"`
	IsActive   *bool            `json:"isActive"`
}

func CreateQRCode(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := qrCodeRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		owned, err := app.CampaignOwnedBy(r.Context(), body.CampaignID, auth.UserID(r.Context()))
		if err != nil {
			httpx.LogInternalError(w, "db.get_campaign", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, "create_qr.get_campaign", body.CampaignID)
			return
		}

		qr, err := app.CreateQRCode(r.Context(), model.QRCode{
			CampaignID: body.CampaignID,
			Name:       body.Name,
			Settings:   body.Settings,
			ExpiresAt:  body.ExpiresAt,
		})
		if err != nil {
			httpx.LogInternalError(w, "db.insert_qr", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, qr)
	}
}

func ListCampaignQRCodes(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignId, err := urlParamId(r, "campaignId")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.campaignId")
			return
		}

		codes, err := app.ListQRCodes(r.Context(), campaignId, auth.UserID(r.Context()))
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "get_qr_codes.get_campaign", campaignId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_qr_codes", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"qrCodes": codes,
		})
	}
}

func UpdateQRCode(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrId, err := urlParamId(r, "id")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		body := qrCodeRequest{}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		isActive := true
		if body.IsActive != nil {
			isActive = *body.IsActive
		}

		qr, err := app.UpdateQRCode(r.Context(), model.QRCode{
			ID:        qrId,
			Name:      body.Name,
			Settings:  body.Settings,
			ExpiresAt: body.ExpiresAt,
			IsActive:  isActive,
		}, auth.UserID(r.Context()))
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "update_qr", qrId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.update_qr", err)
			return
		}

		render.JSON(w, r, qr)
	}
}

// QRCodeImage renders the static PNG for a QR code, pointing at the public
// /q/{slug} resolution URL.
func QRCodeImage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrId, err := urlParamId(r, "id")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		qr, err := app.GetQRCode(r.Context(), qrId, auth.UserID(r.Context()))
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "qr_image.get_qr", qrId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_qr", err)
			return
		}

		code, err := qrcode.New(app.BaseURL+"/q/"+qr.Slug, qrcode.Medium)
		if err != nil {
			httpx.LogInternalError(w, "qr_image.encode", err)
			return
		}
		code.ForegroundColor = parseHexColor(qr.Settings.Color, color.Black)
		code.BackgroundColor = parseHexColor(qr.Settings.BackgroundColor, color.White)

		size := qr.Settings.Size
		if size <= 0 {
			size = 256
		}
		png, err := code.PNG(size)
		if err != nil {
			httpx.LogInternalError(w, "qr_image.render", err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		_, _ = w.Write(png)
	}
}

func parseHexColor(s string, fallback color.Color) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return fallback
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseUint(s[1+i*2:3+i*2], 16, 8)
		if err != nil {
			return fallback
		}
		rgb[i] = uint8(n)
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}
