package domain

// TaskAction names a mutation attempted against a task.
type TaskAction string

const (
	TaskCreate   TaskAction = "create"
	TaskUpdate   TaskAction = "update"
	TaskDelete   TaskAction = "delete"
	TaskAssign   TaskAction = "assign"
	TaskComplete TaskAction = "complete"
)

// The functions below are the single source of permission decisions. Services
// must call them before any write; they are pure and take everything they
// need as arguments.

// CanManageBoard reports whether actor may rename or describe the board,
// change its membership, or delete it.
func CanManageBoard(actorID string, board Board) bool {
	return actorID != "" && actorID == board.CreatedBy
}

// CanAccessBoard reports whether actor may see the board and its tasks:
// the creator or any explicit member.
func CanAccessBoard(actorID string, board Board) bool {
	if actorID == "" {
		return false
	}
	return actorID == board.CreatedBy || board.HasMember(actorID)
}

// CanMutateTask reports whether actor may perform action on a task of board.
// Completing requires assignment to the task; every other mutation requires
// board access. task is ignored for TaskCreate.
func CanMutateTask(actorID string, board Board, task Task, action TaskAction) bool {
	switch action {
	case TaskComplete:
		return actorID != "" && task.IsAssigned(actorID)
	case TaskCreate, TaskUpdate, TaskDelete, TaskAssign:
		return CanAccessBoard(actorID, board)
	default:
		return false
	}
}
