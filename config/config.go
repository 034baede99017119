package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string
	DBUrl     string
	JWTSecret string
	TokenTTL  time.Duration
	GeoIPPath string
	BaseURL   string
	Debug     bool
}

func ParseFlags() (cfg Config, err error) {
	// a .env file is optional, flags always win
	_ = godotenv.Load()

	var host string
	flag.StringVar(&host, "host", "0.0.0.0", "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", envUint("PORT", 5000), "listen port number (default 5000)")
	flag.StringVar(&cfg.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "secret key for signing and verifying tokens")
	var ttl uint
	flag.UintVar(&ttl, "token-ttl", envUint("TOKEN_TTL_HOURS", 168), "token TTL in hours (default 168 = 7 days)")
	flag.StringVar(&cfg.GeoIPPath, "geoip-db", os.Getenv("GEOIP_DB"), "path to a GeoLite2 City mmdb file (optional)")
	flag.StringVar(&cfg.BaseURL, "base-url", os.Getenv("BASE_URL"), "public base URL used in rendered QR codes")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Hour

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://" + cfg.Addr
	}

	switch {
	case cfg.DBUrl == "":
		err = errors.New("missing parameter -db-url")
	case cfg.JWTSecret == "":
		err = errors.New("missing parameter -jwt-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func envUint(name string, fallback uint) uint {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return fallback
}
