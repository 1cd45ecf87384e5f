package tiles

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/db"
	"github.com/sells-group/healthmap/internal/zonecache"
)

// Handler serves /tiles/{layer}/{z}/{x}/{y}.pbf.
type Handler struct {
	pool   db.Pool
	layers map[string]LayerConfig
	cache  *Cache
}

// NewHandler creates a tile handler. cache may be nil.
func NewHandler(pool db.Pool, layers map[string]LayerConfig, cache *Cache) *Handler {
	return &Handler{pool: pool, layers: layers, cache: cache}
}

// Routes mounts the tile endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/tiles/{layer}/{z}/{x}/{y}.pbf", h.ServeTile)
	r.Get("/tiles/stats", h.Stats)
}

// ZonesReplaced drops cached demand-zone tiles; register it with
// demand.Engine.OnReplace. Replacements made by other processes are only
// picked up once the layer's CacheTTL runs out.
func (h *Handler) ZonesReplaced(zonecache.Version) {
	if h.cache != nil {
		h.cache.Invalidate(LayerDemandZones)
	}
}

// ServeTile renders or returns a cached tile.
func (h *Handler) ServeTile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "layer")
	layer, ok := h.layers[name]
	if !ok {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}

	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	if z < layer.MinZoom || z > layer.MaxZoom {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if h.cache != nil {
		if cached := h.cache.Get(name, z, x, y); cached != nil {
			writeTile(w, cached, "hit")
			return
		}
	}

	tile, err := GenerateMVT(r.Context(), h.pool, name, layer, z, x, y)
	if err != nil {
		zap.L().Error("tiles: generation failed",
			zap.String("layer", name),
			zap.Int("z", z), zap.Int("x", x), zap.Int("y", y),
			zap.Error(err),
		)
		http.Error(w, "tile generation failed", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		h.cache.PutTTL(name, z, x, y, tile, layer.CacheTTL)
	}
	writeTile(w, tile, "miss")
}

func writeTile(w http.ResponseWriter, tile []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Header().Set("X-Cache", cacheStatus)
	_, _ = w.Write(tile)
}

// Stats reports the cache contents as plain text.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		_, _ = w.Write([]byte("cache disabled\n"))
		return
	}
	_, _ = w.Write([]byte(h.cache.String() + "\n"))
}
