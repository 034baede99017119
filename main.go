package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/config"
	"github.com/scanradar/scanradar/database"
	"github.com/scanradar/scanradar/enrich"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/realtime"
	"github.com/scanradar/scanradar/routes"
	"github.com/scanradar/scanradar/store"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	records := store.NewPostgres(db)
	tokens := auth.Tokens{Secret: cfg.JWTSecret, TTL: cfg.TokenTTL}

	geo := enrich.NoopGeoResolver()
	if cfg.GeoIPPath != "" {
		geo, err = enrich.OpenGeoIP(cfg.GeoIPPath)
		if err != nil {
			log.Fatal("main.geoip.open:", err)
		}
	} else {
		log.Warn("no GeoIP database configured, scan locations will be absent")
	}

	hub := realtime.NewHub(records)

	// the change feed is a redundant delivery path, losing it is not fatal
	pubsub, err := database.NewPubsub(context.Background(), db, cfg.DBUrl)
	if err != nil {
		log.Errorf("main.pubsub.open: %s", err)
	} else {
		defer pubsub.Close()
		err = realtime.ListenChangeFeed(pubsub, hub)
		if err != nil {
			log.Errorf("main.pubsub.listen: %s", err)
		}
	}

	app := app.App{
		Store:  records,
		Config: cfg,
		Events: hub,
		Tokens: tokens,
		Geo:    geo,
	}

	handler := routes.Wire(app, hub)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// websocket connections are hijacked and unaffected by this
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
