package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/service"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services, auth Authenticator, logger *log.Logger) {
	g := e.Group("/api", requestMetricsMiddleware(logger))

	g.POST("/users", registerUser(svc.Users, auth))
	g.GET("/users/me", getMe(svc.Users, auth))
	g.GET("/users/search", searchUsers(svc.Users, auth))

	g.GET("/boards", listBoards(svc.Boards, auth))
	g.POST("/boards", createBoard(svc.Boards, auth))
	g.GET("/boards/:boardID", getBoard(svc.Boards, auth))
	g.PATCH("/boards/:boardID", updateBoard(svc.Boards, auth))
	g.DELETE("/boards/:boardID", deleteBoard(svc.Boards, auth))
	g.POST("/boards/:boardID/members", addMember(svc.Boards, auth))
	g.DELETE("/boards/:boardID/members/:userID", removeMember(svc.Boards, auth))

	g.GET("/boards/:boardID/tasks", listTasks(svc.Tasks, auth))
	g.POST("/boards/:boardID/tasks", createTask(svc.Tasks, auth))
	g.PATCH("/boards/:boardID/tasks/:taskID", updateTask(svc.Tasks, auth))
	g.POST("/boards/:boardID/tasks/:taskID/complete", completeTask(svc.Tasks, auth))
	g.POST("/boards/:boardID/tasks/:taskID/assign", assignTask(svc.Tasks, auth))
	g.DELETE("/boards/:boardID/tasks/:taskID", deleteTask(svc.Tasks, auth))

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func registerUser(users Users, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req registerRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		u, err := users.Register(c.Request().Context(), actor, req.FullName, req.Email)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, u)
	}
}

func getMe(users Users, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		u, err := users.Get(c.Request().Context(), actor)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, u)
	}
}

func searchUsers(users Users, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		exclude := splitIDs(c.QueryParam("exclude"))
		res, err := users.Search(c.Request().Context(), actor, c.QueryParam("q"), exclude)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func listBoards(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		res, err := boards.ListForUser(c.Request().Context(), actor)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func createBoard(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		b, err := boards.Create(c.Request().Context(), actor, req.Name, req.Description)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, b)
	}
}

func getBoard(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		b, err := boards.Get(c.Request().Context(), actor, c.Param("boardID"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

func updateBoard(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req updateBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		upd := service.BoardUpdate{Name: req.Name, Description: req.Description}
		b, err := boards.Update(c.Request().Context(), actor, c.Param("boardID"), upd)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

func deleteBoard(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		if err := boards.Delete(c.Request().Context(), actor, c.Param("boardID")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func addMember(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req memberRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		if req.UserID == "" {
			return respondError(c, domain.Validationf("userId must be provided"))
		}
		if err := boards.AddMember(c.Request().Context(), actor, c.Param("boardID"), req.UserID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func removeMember(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		if err := boards.RemoveMember(c.Request().Context(), actor, c.Param("boardID"), c.Param("userID")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func listTasks(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		res, err := tasks.ListForBoard(c.Request().Context(), actor, c.Param("boardID"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func createTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		deadline, err := parseDeadline(req.Deadline)
		if err != nil {
			return respondError(c, err)
		}
		in := service.TaskInput{
			Title:           req.Title,
			Description:     req.Description,
			Deadline:        deadline,
			AssignedMembers: req.AssignedMembers,
		}
		t, err := tasks.Create(c.Request().Context(), actor, c.Param("boardID"), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, t)
	}
}

func updateTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		upd := service.TaskUpdate{Title: req.Title, Description: req.Description}
		if req.Deadline != nil {
			if *req.Deadline == "" {
				upd.ClearDeadline = true
			} else {
				deadline, err := parseDeadline(*req.Deadline)
				if err != nil {
					return respondError(c, err)
				}
				upd.Deadline = deadline
			}
		}
		t, err := tasks.Update(c.Request().Context(), actor, c.Param("boardID"), c.Param("taskID"), upd)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func completeTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		t, err := tasks.Complete(c.Request().Context(), actor, c.Param("boardID"), c.Param("taskID"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func assignTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		var req assignTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return respondError(c, err)
		}
		t, err := tasks.Assign(c.Request().Context(), actor, c.Param("boardID"), c.Param("taskID"), req.MemberIDs)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func deleteTask(tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorID(c, auth)
		if err != nil {
			return respondError(c, err)
		}
		if err := tasks.Delete(c.Request().Context(), actor, c.Param("boardID"), c.Param("taskID")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func actorID(c echo.Context, auth Authenticator) (string, error) {
	return auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return domain.Validationf("invalid request body")
	}
	return nil
}

func parseDeadline(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(deadlineLayout, raw)
	if err != nil {
		return nil, domain.Validationf("deadline must be formatted as %s", deadlineLayout)
	}
	return &t, nil
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func respondError(c echo.Context, err error) error {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeDuplicateTitle, domain.CodeAlreadyMember, domain.CodeInvalidOperation, domain.CodeNotEmpty:
		return http.StatusConflict
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
