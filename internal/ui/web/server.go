// Package web serves the browser UI and a small JSON API over the pipeline.
package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
	"github.com/basel-ax/leonardo-publisher/internal/notify"
)

const initiatedMessage = "Image generation initiated successfully!"

// Server is the HTTP front end
type Server struct {
	echo   *echo.Echo
	runner domain.Runner
	addr   string
}

type line struct {
	Text string
	OK   bool
}

type page struct {
	Prompt  string
	Warning string
	Lines   []line
	Images  []string
	Outcome string
	Failed  bool
}

type generateRequest struct {
	Prompt string `json:"prompt" form:"prompt"`
}

type resultResponse struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
	Value   string `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

type generateResponse struct {
	RunID   string           `json:"run_id,omitempty"`
	Prompt  string           `json:"prompt"`
	Images  []string         `json:"images"`
	Results []resultResponse `json:"results"`
	Message string           `json:"message"`
	Error   string           `json:"error,omitempty"`
}

// New creates a Server that runs the pipeline through runner
func New(runner domain.Runner, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Renderer = newRenderer()
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{echo: e, runner: runner, addr: addr}

	e.GET("/", s.index)
	e.POST("/generate", s.generate)
	e.POST("/api/generate", s.generateJSON)
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) index(c echo.Context) error {
	return c.Render(http.StatusOK, "index", page{})
}

func (s *Server) generate(c echo.Context) error {
	prompt := c.FormValue("prompt")

	report, err := s.runner.Run(c.Request().Context(), prompt)
	if notify.IsWarning(err) {
		return c.Render(http.StatusOK, "index", page{Warning: notify.RunMessage(nil, err)})
	}

	p := page{
		Prompt:  prompt,
		Outcome: notify.RunMessage(report, err),
		Failed:  err != nil,
	}
	if report != nil {
		// the success line follows every submission outcome
		announce := len(report.Jobs) > 0
		for _, res := range report.Results {
			if announce && res.Stage != domain.StageGenerate {
				p.Lines = append(p.Lines, line{Text: initiatedMessage, OK: true})
				announce = false
			}
			p.Lines = append(p.Lines, line{Text: notify.Message(res), OK: res.OK()})
		}
		if announce {
			p.Lines = append(p.Lines, line{Text: initiatedMessage, OK: true})
		}
		for _, img := range report.Images {
			p.Images = append(p.Images, img.URL)
		}
	}

	return c.Render(http.StatusOK, "index", p)
}

func (s *Server) generateJSON(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	report, err := s.runner.Run(c.Request().Context(), req.Prompt)
	if notify.IsWarning(err) {
		return c.JSON(http.StatusBadRequest, generateResponse{
			Prompt:  req.Prompt,
			Message: notify.RunMessage(nil, err),
			Error:   err.Error(),
		})
	}

	resp := generateResponse{
		Prompt:  req.Prompt,
		Images:  []string{},
		Results: []resultResponse{},
		Message: notify.RunMessage(report, err),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if report != nil {
		resp.RunID = report.RunID
		for _, img := range report.Images {
			resp.Images = append(resp.Images, img.URL)
		}
		for _, res := range report.Results {
			r := resultResponse{
				Stage:   string(res.Stage),
				Subject: res.Subject,
				Value:   res.Value,
				Message: notify.Message(res),
			}
			if res.Err != nil {
				r.Error = res.Err.Error()
			}
			resp.Results = append(resp.Results, r)
		}
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	return c.JSON(status, resp)
}
