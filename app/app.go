package app

import (
	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/config"
	"github.com/scanradar/scanradar/enrich"
	"github.com/scanradar/scanradar/realtime"
	"github.com/scanradar/scanradar/store"
)

type App struct {
	store.Store
	config.Config
	Events realtime.Publisher
	Tokens auth.Tokens
	Geo    enrich.GeoResolver
}
