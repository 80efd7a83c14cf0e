package dto

// HealthInfo describes the loaded model and serving state.
type HealthInfo struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Input   [2]int `json:"input"` // height, width
	Workers int    `json:"workers"`
	Streams int    `json:"streams"`
}
