package ride

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"
)

// ExportGPX renders a completed ride's route as a GPX 1.1 document.
func ExportGPX(r CompletedRide) ([]byte, error) {
	doc := &gpx.GPX{
		Creator: "motorev",
		Name:    fmt.Sprintf("Ride %s", r.ID),
	}

	segment := gpx.GPXTrackSegment{}
	for _, p := range r.RoutePoints {
		point := gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  p.Lat,
				Longitude: p.Lng,
			},
			Timestamp: p.Timestamp,
		}
		segment.Points = append(segment.Points, point)
	}

	doc.Tracks = []gpx.GPXTrack{{
		Name:     doc.Name,
		Segments: []gpx.GPXTrackSegment{segment},
	}}

	return doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}
