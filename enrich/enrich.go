// Package enrich derives device classification and coarse geolocation from the
// raw request fingerprint of a scan (IP address + User-Agent).
package enrich

import (
	"strings"

	"github.com/mileusna/useragent"
)

type Browser struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type OS struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Device struct {
	Type   string `json:"type"`
	Vendor string `json:"vendor"`
	Model  string `json:"model"`
}

type ClientInfo struct {
	Browser Browser `json:"browser"`
	OS      OS      `json:"os"`
	Device  Device  `json:"device"`
}

// Parse classifies a raw User-Agent string. Unknown fields stay empty, it
// never fails.
func Parse(userAgent string) ClientInfo {
	ua := useragent.Parse(userAgent)

	info := ClientInfo{
		Browser: Browser{Name: ua.Name, Version: ua.Version},
		OS:      OS{Name: ua.OS, Version: ua.OSVersion},
		Device:  Device{Model: ua.Device},
	}

	switch {
	case ua.Mobile:
		info.Device.Type = "mobile"
	case ua.Tablet:
		info.Device.Type = "tablet"
	case ua.Bot:
		info.Device.Type = "bot"
	case ua.Desktop:
		info.Device.Type = "desktop"
	}

	return info
}

// Fingerprint joins the non-empty client components with a pipe.
func Fingerprint(info ClientInfo) string {
	components := []string{
		info.Browser.Name,
		info.Browser.Version,
		info.OS.Name,
		info.OS.Version,
		info.Device.Vendor,
		info.Device.Model,
	}

	nonEmpty := components[:0]
	for _, c := range components {
		if c != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	return strings.Join(nonEmpty, "|")
}

// MergeMetadata merges caller-supplied metadata with the derived
// classification. Derived keys win on conflict.
func MergeMetadata(metadata map[string]any, info ClientInfo) map[string]any {
	merged := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["browser"] = info.Browser
	merged["os"] = info.OS
	merged["device"] = info.Device
	return merged
}
