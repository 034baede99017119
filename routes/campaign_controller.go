package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/model"
	"github.com/scanradar/scanradar/store"
)

func urlParamId(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

type campaignRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Status string         `json:"status"`
	Config map[string]any `json:"config"`
}

func CreateCampaign(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := campaignRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil || body.Name == "" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		campaign, err := app.CreateCampaign(r.Context(), model.Campaign{
			UserID: auth.UserID(r.Context()),
			Name:   body.Name,
			Type:   body.Type,
			Config: body.Config,
		})
		if err != nil {
			httpx.LogInternalError(w, "db.insert_campaign", err)
			return
		}

		// a form campaign carries its form definition in the config blob
		if campaign.Type == "form" {
			form, err := app.CreateForm(r.Context(), formFromConfig(campaign))
			if err != nil {
				log.Errorf("db.insert_campaign.form: %s", err)
			} else {
				campaign.Form = &form
			}
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, campaign)
	}
}

func formFromConfig(campaign model.Campaign) model.Form {
	form := model.Form{
		CampaignID: campaign.ID,
		Title:      campaign.Name,
		Fields:     []model.FormField{},
	}
	if title, ok := campaign.Config["title"].(string); ok && title != "" {
		form.Title = title
	}
	if description, ok := campaign.Config["description"].(string); ok {
		form.Description = description
	}
	if fields, ok := campaign.Config["fields"].([]any); ok {
		for _, f := range fields {
			field, ok := f.(map[string]any)
			if !ok {
				continue
			}
			name, _ := field["name"].(string)
			label, _ := field["label"].(string)
			fieldType, _ := field["type"].(string)
			required, _ := field["required"].(bool)
			form.Fields = append(form.Fields, model.FormField{
				Type:     fieldType,
				Name:     name,
				Label:    label,
				Required: required,
				Options:  field["options"],
			})
		}
	}
	return form
}

func ListCampaigns(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaigns, err := app.ListCampaigns(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			httpx.LogInternalError(w, "db.get_campaigns", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"campaigns": campaigns,
		})
	}
}

func GetCampaignById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignId, err := urlParamId(r, "id")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		campaign, err := app.GetCampaign(r.Context(), campaignId, auth.UserID(r.Context()))
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "get_campaign", campaignId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_campaign", err)
			return
		}

		render.JSON(w, r, campaign)
	}
}

func UpdateCampaign(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignId, err := urlParamId(r, "id")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		body := campaignRequest{}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		campaign, err := app.UpdateCampaign(r.Context(), model.Campaign{
			ID:     campaignId,
			UserID: auth.UserID(r.Context()),
			Name:   body.Name,
			Status: body.Status,
			Config: body.Config,
		})
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "update_campaign", campaignId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.update_campaign", err)
			return
		}

		render.JSON(w, r, campaign)
	}
}

func DeleteCampaign(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignId, err := urlParamId(r, "id")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		err = app.DeleteCampaign(r.Context(), campaignId, auth.UserID(r.Context()))
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "delete_campaign", campaignId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_campaign", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
