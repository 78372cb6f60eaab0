package api

// ReviewRequest is the HTTP request body for POST /api/v1/review.
type ReviewRequest struct {
	ID     int64  `json:"id" validate:"required"`
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Notes  string `json:"notes"`
}
