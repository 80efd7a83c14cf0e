package model

// Detection represents one detected crack in normalized image coordinates.
type Detection struct {
	Score float32    `json:"score"`
	Box   [4]float32 `json:"box"` // xmin, ymin, xmax, ymax
}
