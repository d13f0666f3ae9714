package varz

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/chromy/assetcache/internal/core"
	"github.com/chromy/assetcache/internal/routes"
	"github.com/chromy/assetcache/internal/schemas"
	"github.com/julienschmidt/httprouter"
)

type VarzResponse struct {
	Version   string           `json:"version"`
	BuildTime string           `json:"buildTime"`
	GoVersion string           `json:"goVersion"`
	StartTime time.Time        `json:"startTime"`
	Uptime    string           `json:"uptime"`
	Cache     *core.CacheStats `json:"cache,omitempty"`
}

var (
	version   = "dev"
	buildTime = "unknown"
	startTime = time.Now()
)

func VarzHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	uptime := time.Since(startTime)

	response := VarzResponse{
		Version:   version,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		StartTime: startTime,
		Uptime:    uptime.String(),
	}
	if f := core.GetFacade(); f != nil {
		stats := f.CacheStats()
		response.Cache = &stats
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func init() {
	routes.Register(routes.Route{
		Id:      "varz",
		Method:  http.MethodGet,
		Path:    "/api/varz",
		Handler: VarzHandler,
	})

	schemas.Register("varz.VarzResponse", VarzResponse{})
}
