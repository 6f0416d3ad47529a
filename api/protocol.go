package api

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Deadlines travel as calendar dates.
const deadlineLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type createBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateBoardRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

type createTaskRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Deadline        string   `json:"deadline,omitempty"`
	AssignedMembers []string `json:"assignedMembers"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	// Deadline is a date string; an explicit empty string clears it.
	Deadline *string `json:"deadline"`
}

type assignTaskRequest struct {
	MemberIDs []string `json:"memberIds"`
}
