package geometry

import (
	"encoding/binary"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/healthmap/internal/model"
)

// DecodeWKB decodes well-known binary as returned by ST_AsBinary or stored
// in a SQLite blob. A nil or empty slice decodes to a nil geometry.
func DecodeWKB(b []byte) (orb.Geometry, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode wkb")
	}
	return g, nil
}

// EncodeWKB encodes g as little-endian WKB. A nil geometry encodes to nil.
func EncodeWKB(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	b, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode wkb")
	}
	return b, nil
}

// DecodeWKT parses well-known text.
func DecodeWKT(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode wkt")
	}
	return g, nil
}

// EncodeWKT renders g as well-known text.
func EncodeWKT(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	return wkt.MarshalString(g)
}

// ZoneFeatures renders demand zones as a GeoJSON FeatureCollection for the
// map. Zones without a stored polygon are emitted as points.
func ZoneFeatures(zones []model.DemandZone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		var g orb.Geometry = orb.Point{z.X, z.Y}
		if z.Geometry != nil {
			g = z.Geometry
		}
		f := geojson.NewFeature(g)
		f.Properties["x"] = z.X
		f.Properties["y"] = z.Y
		f.Properties["population"] = z.Population
		f.Properties["district"] = z.District
		f.Properties["priority"] = string(z.Priority)
		f.Properties["distance_km"] = z.DistanceKM
		f.Properties["updated_at"] = z.UpdatedAt
		fc.Append(f)
	}
	return fc
}
