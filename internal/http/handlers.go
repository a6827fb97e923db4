package http

import (
	"errors"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	"vodworks/internal/config"
	"vodworks/internal/jobs"
	"vodworks/internal/model"
	"vodworks/internal/session"
	"vodworks/internal/workspace"
)

func getConfig(c *fiber.Ctx) *config.Config {
	return c.Locals("config").(*config.Config)
}

func getStore(c *fiber.Ctx) *session.Store {
	return c.Locals("store").(*session.Store)
}

func getWorkspace(c *fiber.Ctx) *workspace.Manager {
	return c.Locals("workspace").(*workspace.Manager)
}

func getDispatcher(c *fiber.Ctx) *jobs.Dispatcher {
	return c.Locals("dispatcher").(*jobs.Dispatcher)
}

func getLogger(c *fiber.Ctx) *slog.Logger {
	if l, ok := c.Locals("logger").(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success: false,
		Code:    "INVALID_REQUEST",
		Error:   msg,
	})
}

func parseSubmit(c *fiber.Ctx) (SubmitRequest, error) {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return req, badRequest(c, "Invalid JSON body")
	}
	if req.URL == "" {
		return req, badRequest(c, "url is required")
	}
	return req, nil
}

// submit runs the shared sync/async tail of every submission endpoint.
func submit(c *fiber.Ctx, req model.JobRequest, sync bool) error {
	disp := getDispatcher(c)

	if sync {
		id, result, err := disp.RunInline(c.Context(), req)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Success: false,
				Code:    "JOB_FAILED",
				Error:   err.Error(),
			})
		}
		return c.JSON(SyncResponse{Success: true, ID: id, Result: &result})
	}

	id, err := disp.Enqueue(c.Context(), req)
	if err != nil {
		status := fiber.StatusInternalServerError
		code := "INTERNAL_ERROR"
		if errors.Is(err, session.ErrConflict) {
			status = fiber.StatusConflict
			code = "CONFLICT"
		}
		return c.Status(status).JSON(ErrorResponse{Success: false, Code: code, Error: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(SubmitResponse{
		Success: true,
		ID:      id,
		Status:  string(session.StatusPending),
	})
}

func infoHandler(c *fiber.Ctx) error {
	req, err := parseSubmit(c)
	if err != nil {
		return err
	}

	infoer := c.Locals("infoer").(Infoer)
	info, err := infoer.Info(c.Context(), req.URL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Success: false,
			Code:    "SOURCE_UNAVAILABLE",
			Error:   err.Error(),
		})
	}
	return c.JSON(InfoResponse{Success: true, Info: &info})
}

func downloadHandler(c *fiber.Ctx) error {
	req, err := parseSubmit(c)
	if err != nil {
		return err
	}

	job := model.JobRequest{
		Kind:   model.KindDownload,
		URL:    req.URL,
		Format: req.Format,
	}
	if req.Transcode != nil {
		job.Transcode = *req.Transcode
		job.Transcode.Enabled = true
	}
	return submit(c, job, req.Sync)
}

func audioHandler(c *fiber.Ctx) error {
	req, err := parseSubmit(c)
	if err != nil {
		return err
	}

	job := model.JobRequest{
		Kind:        model.KindAudio,
		URL:         req.URL,
		Format:      req.Format,
		AudioFormat: req.AudioFormat,
		Audio: model.AudioOptions{
			Bitrate:    req.Bitrate,
			SampleRate: req.SampleRate,
		},
	}
	return submit(c, job, req.Sync)
}

func streamingHandler(c *fiber.Ctx) error {
	req, err := parseSubmit(c)
	if err != nil {
		return err
	}

	job := model.JobRequest{
		Kind:      model.KindStreaming,
		URL:       req.URL,
		Format:    req.Format,
		Streaming: model.StreamingOptions{SegmentSeconds: req.SegmentSeconds},
	}
	return submit(c, job, req.Sync)
}

func thumbnailsHandler(c *fiber.Ctx) error {
	req, err := parseSubmit(c)
	if err != nil {
		return err
	}
	if req.Count < 0 {
		return badRequest(c, "count must be positive")
	}

	job := model.JobRequest{
		Kind:           model.KindThumbnails,
		URL:            req.URL,
		Format:         req.Format,
		ThumbnailCount: req.Count,
	}
	return submit(c, job, req.Sync)
}

func statusHandler(c *fiber.Ctx) error {
	sess, err := getStore(c).Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "Session not found or expired",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}
	return c.JSON(StatusResponse{Success: true, Session: sess})
}

func sessionsHandler(c *fiber.Ctx) error {
	list, err := getStore(c).List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}
	return c.JSON(SessionsResponse{Success: true, Count: len(list), Sessions: list})
}

func cancelHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	st := getStore(c)

	sess, err := st.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "Session not found or expired",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	if !session.CanTransition(sess.Status, session.StatusCancelled) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Success: false,
			Code:    "CONFLICT",
			Error:   "Session already " + string(sess.Status),
		})
	}

	updated, err := st.Update(c.Context(), id, session.StatusCancelled, sess.Progress, nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	// A pending job's workspace does not exist yet; a processing job's
	// workspace is removed by the worker when it observes the
	// cancellation. Removing it here as well is harmless.
	_ = getWorkspace(c).Destroy(id)

	return c.JSON(StatusResponse{Success: true, Session: updated})
}

// fileHandler delivers an artifact exactly once: the workspace and the
// session record are gone by the time the response finishes.
func fileHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	filename := c.Params("filename")
	ws := getWorkspace(c)

	path, err := ws.FilePath(id, filename)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "NOT_FOUND",
			Error:   "File not found or already retrieved",
		})
	}

	f, err := os.Open(path)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "NOT_FOUND",
			Error:   "File not found or already retrieved",
		})
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	// The open descriptor keeps the bytes readable after the unlink,
	// so cleanup can happen before the stream is consumed.
	if err := ws.Destroy(id); err != nil {
		getLogger(c).Warn("workspace_cleanup_failed", "session_id", id, "error", err)
	}
	if err := getStore(c).Delete(c.Context(), id); err != nil {
		getLogger(c).Warn("session_cleanup_failed", "session_id", id, "error", err)
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.SendStream(f, int(info.Size()))
}

func cleanupHandler(c *fiber.Ctx) error {
	stats := jobs.CleanupExpired(c.Context(), getConfig(c), getStore(c), getWorkspace(c), getLogger(c))
	return c.JSON(CleanupResponse{
		Success:           true,
		WorkspacesRemoved: stats.WorkspacesRemoved,
		SessionsRemoved:   stats.SessionsRemoved,
	})
}
