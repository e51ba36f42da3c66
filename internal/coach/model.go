package coach

// StuckRequest asks the coach for help getting started. TaskTitle is
// optional; when present it anchors the conversation to a concrete task.
type StuckRequest struct {
	TaskTitle string `json:"task_title" validate:"omitempty,max=200"`
	Message   string `json:"message" validate:"required,min=1,max=2000"`
}

// StuckResponse carries the coach's reply.
type StuckResponse struct {
	Reply string `json:"ai_response"`
}
