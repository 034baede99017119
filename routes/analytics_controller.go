package routes

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/model"
	"github.com/scanradar/scanradar/store"
)

func timeframeWindow(timeframe string, until time.Time) time.Time {
	switch timeframe {
	case "24h":
		return until.Add(-24 * time.Hour)
	case "30d":
		return until.AddDate(0, 0, -30)
	case "90d":
		return until.AddDate(0, 0, -90)
	default: // 7d
		return until.AddDate(0, 0, -7)
	}
}

// CampaignAnalytics aggregates scans and submissions of one campaign over a
// timeframe: totals, a timeline and device/location breakdowns.
func CampaignAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignId, err := urlParamId(r, "campaignId")
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.campaignId")
			return
		}

		campaign, err := app.GetCampaign(r.Context(), campaignId, auth.UserID(r.Context()))
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "analytics.get_campaign", campaignId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_campaign", err)
			return
		}

		timeframe := r.URL.Query().Get("timeframe")
		if timeframe == "" {
			timeframe = "7d"
		}
		until := time.Now()
		since := timeframeWindow(timeframe, until)

		scans, err := app.CampaignScans(r.Context(), campaignId, since, until)
		if err != nil {
			httpx.LogInternalError(w, "db.get_scans", err)
			return
		}

		submissions := []model.FormSubmission{}
		if campaign.Type == "form" {
			submissions, err = app.CampaignSubmissions(r.Context(), campaignId, since, until)
			if err != nil {
				httpx.LogInternalError(w, "db.get_submissions", err)
				return
			}
		}

		render.JSON(w, r, map[string]any{
			"campaign": map[string]any{
				"id":   campaign.ID,
				"name": campaign.Name,
				"type": campaign.Type,
			},
			"timeframe": timeframe,
			"analytics": calculateAnalytics(scans, submissions, timeframe),
		})
	}
}

func calculateAnalytics(scans []model.ScanEvent, submissions []model.FormSubmission, timeframe string) map[string]any {
	uniqueUsers := map[string]bool{}
	for _, scan := range scans {
		uniqueUsers[scan.UserUUID] = true
	}

	conversionRate := 0.0
	if len(scans) > 0 {
		conversionRate = float64(len(submissions)) / float64(len(scans)) * 100
		conversionRate = math.Round(conversionRate*100) / 100
	}

	scanTimes := make([]time.Time, len(scans))
	devices := map[string]int{}
	locations := map[string]int{}
	for i, scan := range scans {
		scanTimes[i] = scan.CreatedAt

		device, _ := scan.Metadata["device"].(map[string]any)
		deviceType, _ := device["type"].(string)
		if deviceType == "" {
			deviceType = "desktop"
		}
		devices[deviceType]++

		city := "Unknown"
		if scan.LocationData != nil && scan.LocationData.City != "" {
			city = scan.LocationData.City
		}
		locations[city]++
	}

	submissionTimes := make([]time.Time, len(submissions))
	for i, sub := range submissions {
		submissionTimes[i] = sub.CreatedAt
	}

	return map[string]any{
		"totals": map[string]any{
			"scans":          len(scans),
			"uniqueUsers":    len(uniqueUsers),
			"submissions":    len(submissions),
			"conversionRate": conversionRate,
		},
		"timeline": map[string]any{
			"scans":       groupByTimePeriod(scanTimes, timeframe),
			"submissions": groupByTimePeriod(submissionTimes, timeframe),
		},
		"breakdowns": map[string]any{
			"devices":   devices,
			"locations": locations,
		},
	}
}

func groupByTimePeriod(times []time.Time, timeframe string) map[string]int {
	layout := "2006-01-02"
	if timeframe == "24h" {
		layout = "2006-01-02 15:00"
	}

	groups := map[string]int{}
	for _, t := range times {
		groups[t.Format(layout)]++
	}
	return groups
}

// Dashboard returns the cross-campaign overview for the authenticated user.
func Dashboard(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId := auth.UserID(r.Context())

		overview, err := app.DashboardOverview(r.Context(), userId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_overview", err)
			return
		}

		recentScans, err := app.RecentScans(r.Context(), userId, 10)
		if err != nil {
			httpx.LogInternalError(w, "db.get_recent_scans", err)
			return
		}

		campaigns, err := app.ListCampaigns(r.Context(), userId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_campaigns", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"overview":    overview,
			"recentScans": recentScans,
			"campaigns":   campaigns,
		})
	}
}
