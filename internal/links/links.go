// Package links builds the external viewer URLs attached to each survey
// point: a panorama viewer for the physical location and the rig image
// archive for the forward-facing photo.
package links

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingTimestamp is returned by ImageURL when the row has no parsed
// timestamp; the archive path is date-addressed so no URL can exist.
var ErrMissingTimestamp = errors.New("links: row has no timestamp")

// StreetViewURL builds the panorama viewer link for a coordinate. The
// parameters are embedded verbatim; callers validate ranges if they care.
func StreetViewURL(lat, lon, heading, pitch, fov float64) string {
	return "https://www.google.com/maps/@?api=1&map_action=pano" +
		"&viewpoint=" + formatFloat(lat) + "," + formatFloat(lon) +
		"&heading=" + formatFloat(heading) +
		"&pitch=" + formatFloat(pitch) +
		"&fov=" + formatFloat(fov)
}

// DefaultStreetViewURL builds the panorama link with a level, forward-facing
// 90-degree view.
func DefaultStreetViewURL(lat, lon float64) string {
	return StreetViewURL(lat, lon, 0, 0, 90)
}

// ImageURL builds the rig image archive URL:
// <base>/<camera>/<rig>/<YYYY/MM/DD/HH>/<file>. The hour directory comes
// from the timestamp's own wall clock.
func ImageURL(baseHost, camera, rig string, ts sql.NullTime, fileName string) (string, error) {
	if !ts.Valid {
		return "", ErrMissingTimestamp
	}
	if fileName == "" {
		return "", fmt.Errorf("links: empty image file name")
	}
	return strings.TrimRight(baseHost, "/") + "/" + camera + "/" + rig + "/" +
		ts.Time.Format("2006/01/02/15") + "/" + fileName, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
