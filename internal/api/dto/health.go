package dto

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}
