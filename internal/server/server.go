// Package server exposes single-address verification over HTTP.
package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/optimode/mailverify"
)

// Verifier runs the verification pipeline for one address.
// *mailverify.Verifier implements it.
type Verifier interface {
	Verify(ctx context.Context, raw string) (mailverify.Outcome, error)
}

type Config struct {
	Verifier Verifier
	Log      logrus.FieldLogger
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
}

type Server struct {
	app      *fiber.App
	verifier Verifier
	validate *validator.Validate
	log      logrus.FieldLogger
}

type verifyRequest struct {
	Email string `json:"email" validate:"required"`
}

// verifyResponse mirrors the JSON contract of POST /api/verify-email.
// Stages maps every stage that ran to "passed" or "failed".
type verifyResponse struct {
	Status       bool              `json:"status"`
	Email        string            `json:"email,omitempty"`
	Message      string            `json:"message,omitempty"`
	Error        string            `json:"error,omitempty"`
	CheckedAt    *time.Time        `json:"checkedAt,omitempty"`
	Verification string            `json:"verification"`
	Stages       map[string]string `json:"stages,omitempty"`
	Suggestion   string            `json:"suggestion,omitempty"`
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		verifier: cfg.Verifier,
		validate: validator.New(),
		log:      log,
	}

	s.app.Use(recover.New())

	// Health check endpoint
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "running"})
	})
	if cfg.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := s.app.Group("/api")
	api.Post("/verify-email", s.verifyEmail)
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.WithField("addr", addr).Info("server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) verifyEmail(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())
	var req verifyRequest
	if len(body) == 0 || body[0] != '{' {
		return badInput(c, "Request body must be a single JSON object.")
	}
	if err := c.BodyParser(&req); err != nil {
		return badInput(c, "Request body must be a single JSON object.")
	}
	if err := s.validate.Struct(req); err != nil {
		return badInput(c, "A valid email is required.")
	}

	out, err := s.verifier.Verify(c.UserContext(), req.Email)
	if err != nil {
		s.log.WithError(err).Error("verifier is misconfigured")
		return c.Status(fiber.StatusInternalServerError).JSON(verifyResponse{
			Status:       false,
			Email:        req.Email,
			Verification: mailverify.StageUnknown,
			Error:        "Unexpected error during email verification.",
		})
	}

	resp := verifyResponse{
		Status:       out.Passed(),
		Email:        out.Email,
		Verification: out.Verification(),
		Stages:       stageMap(out.Stages),
		Suggestion:   out.Suggestion,
	}

	switch {
	case out.Passed():
		checkedAt := out.CheckedAt
		resp.Message = out.Message
		resp.CheckedAt = &checkedAt
		return c.Status(fiber.StatusOK).JSON(resp)
	case out.Verification() == mailverify.StageUnknown:
		resp.Error = out.Message
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	default:
		resp.Error = out.Message
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}
}

func badInput(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(verifyResponse{
		Status:       false,
		Verification: mailverify.StageInput,
		Error:        msg,
		Stages:       map[string]string{mailverify.StageInput: "failed"},
	})
}

func stageMap(results []mailverify.StageResult) map[string]string {
	m := make(map[string]string, len(results))
	for _, r := range results {
		if r.Passed {
			m[r.Stage] = "passed"
		} else {
			m[r.Stage] = "failed"
		}
	}
	return m
}
