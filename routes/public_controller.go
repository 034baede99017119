package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/store"
)

// ResolveQR backs the public landing endpoint a scanned code points at. The
// active flag and expiry are checked on every resolution.
func ResolveQR(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		qr, err := app.ResolveActiveQR(r.Context(), slug)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.LogNotFound(w, "resolve_qr", slug)
			return
		case errors.Is(err, store.ErrExpired):
			httpx.LogStatusMsg(w, http.StatusGone, log.DebugLevel, "resolve_qr.expired", "QR Code has expired")
			return
		case err != nil:
			httpx.LogInternalError(w, "db.resolve_qr", err)
			return
		}

		campaign, err := app.ResolveCampaign(r.Context(), qr.CampaignID)
		if err != nil {
			httpx.LogInternalError(w, "db.resolve_qr.campaign", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"qrCode": qr,
			"campaign": map[string]any{
				"id":     campaign.ID,
				"type":   campaign.Type,
				"config": campaign.Config,
			},
			"form": campaign.Form,
		})
	}
}
