package gateway

// Inbound event payloads.

type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"` // seconds
}

type VoteRequest struct {
	PollID      string `json:"pollId"`
	StudentID   string `json:"studentId"`
	OptionIndex int    `json:"optionIndex"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type KickRequest struct {
	StudentID string `json:"studentId"`
}

// Outbound event payloads.

// ErrorResponse is the payload of poll:error and vote:error, always
// sent to the offending client only.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type KickNotice struct {
	StudentID string `json:"studentId"`
}

type StudentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
