package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/realtime"
)

func Wire(app app.App, hub *realtime.Hub) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	// public ingestion + resolution
	root.Post("/track/{slug:[0-9a-f]+}", TrackScan(app))
	root.Post(`/track/form/{formId:^\d+$}`, SubmitForm(app))
	root.Get("/q/{slug:[0-9a-f]+}", ResolveQR(app))

	// realtime dashboard channel
	root.Get("/ws", realtime.Handler(hub, app.Tokens))

	root.Post("/auth/register", Register(app))
	root.Post("/auth/login", Login(app))

	root.Route("/campaigns", func(r chi.Router) {
		r.Use(app.Tokens.Authenticate)

		r.Post("/", CreateCampaign(app))
		r.Get("/", ListCampaigns(app))
		r.Get(`/{id:^\d+$}`, GetCampaignById(app))
		r.Put(`/{id:^\d+$}`, UpdateCampaign(app))
		r.Delete(`/{id:^\d+$}`, DeleteCampaign(app))
	})

	root.Route("/qr", func(r chi.Router) {
		r.Use(app.Tokens.Authenticate)

		r.Post("/", CreateQRCode(app))
		r.Get(`/campaign/{campaignId:^\d+$}`, ListCampaignQRCodes(app))
		r.Put(`/{id:^\d+$}`, UpdateQRCode(app))
		r.Get(`/{id:^\d+$}/image`, QRCodeImage(app))
	})

	root.Route("/analytics", func(r chi.Router) {
		r.Use(app.Tokens.Authenticate)

		r.Get(`/campaign/{campaignId:^\d+$}`, CampaignAnalytics(app))
		r.Get("/dashboard", Dashboard(app))
	})

	return root
}
