// Package api exposes the runtime over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/viant/geoflow"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/scheduler"
	"github.com/viant/geoflow/tracing"
)

// Runtime is the subset of the engine runtime the API serves
type Runtime interface {
	Workflows(ctx context.Context) ([]string, error)
	Workflow(ctx context.Context, name string) (*model.Workflow, error)
	DecodeYAMLWorkflow(data []byte) (*model.Workflow, error)
	Submit(ctx context.Context, name string, inputs, parameters map[string]interface{}) (*execution.Run, error)
	SubmitWorkflow(ctx context.Context, aWorkflow *model.Workflow, inputs, parameters map[string]interface{}) (*execution.Run, error)
	Resubmit(ctx context.Context, runID string) (*execution.Run, error)
	Cancel(ctx context.Context, runID, reason string) error
	Run(ctx context.Context, runID string) (*execution.Run, error)
	Tasks(ctx context.Context, runID string) ([]*execution.TaskExecution, error)
	Runs(ctx context.Context, ids []string, statuses ...execution.RunStatus) ([]*execution.Run, error)
	Metrics(ctx context.Context) (*geoflow.Metrics, error)
}

// SubmitRequest starts a run of a named workflow or of an inline YAML/JSON definition
type SubmitRequest struct {
	Workflow   string                 `json:"workflow,omitempty"`
	Definition string                 `json:"definition,omitempty"`
	Name       string                 `json:"name,omitempty"`
	Inputs     map[string]interface{} `json:"inputs,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// CancelRequest carries an optional cancellation reason
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RunView is a run with its sink outputs encoded for the reference client
type RunView struct {
	*execution.Run
	// Outputs shadows the run outputs; set only for decoded views.
	Outputs map[string]interface{} `json:"outputs,omitempty"`
	Output  string                 `json:"output,omitempty"`
}

// Server serves the REST control surface
type Server struct {
	runtime Runtime
	app     *fiber.App
}

// App returns the fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on port until ctx is done
func (s *Server) Listen(ctx context.Context, port int) error {
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			log.Printf("api: shutdown: %v", err)
		}
	}()
	return s.app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
}

func traced(c fiber.Ctx) error {
	ctx, span := tracing.StartSpan(c.Context(), "api "+c.Method()+" "+c.Path(), tracing.KindServer)
	defer span.End()
	c.SetContext(ctx)
	err := c.Next()
	span.SetHTTPStatus(c.Response().StatusCode())
	return err
}

func (s *Server) routes() {
	s.app.Use(traced)
	v0 := s.app.Group("/v0")
	v0.Get("/workflows", s.listWorkflows)
	v0.Get("/workflows/:name", s.getWorkflow)
	v0.Post("/runs", s.submit)
	v0.Get("/runs", s.listRuns)
	v0.Get("/runs/:id", s.getRun)
	v0.Get("/runs/:id/tasks", s.getTasks)
	v0.Post("/runs/:id/cancel", s.cancel)
	v0.Post("/runs/:id/resubmit", s.resubmit)
	v0.Get("/system-metrics", s.metrics)
}

func (s *Server) listWorkflows(c fiber.Ctx) error {
	names, err := s.runtime.Workflows(c.Context())
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(fiber.Map{"workflows": names})
}

func (s *Server) getWorkflow(c fiber.Ctx) error {
	aWorkflow, err := s.runtime.Workflow(c.Context(), c.Params("name"))
	if err != nil {
		var definitionErr *types.DefinitionError
		if errors.As(err, &definitionErr) && definitionErr.Ref == c.Params("name") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return failure(c, err)
	}
	switch c.Query("return_format", "json") {
	case "json":
		return c.JSON(aWorkflow)
	case "description":
		sources := map[string][]string{}
		for name, ports := range aWorkflow.Sources {
			for _, port := range ports {
				sources[name] = append(sources[name], port.String())
			}
		}
		sinks := map[string]string{}
		for name, port := range aWorkflow.Sinks {
			sinks[name] = port.String()
		}
		return c.JSON(fiber.Map{
			"name":        aWorkflow.Name,
			"inputs":      sources,
			"outputs":     sinks,
			"parameters":  aWorkflow.Parameters,
			"description": aWorkflow.Describe(),
		})
	case "yaml":
		return c.JSON(aWorkflow.Document())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported return_format " + c.Query("return_format")})
}

func (s *Server) submit(c fiber.Ctx) error {
	var request SubmitRequest
	if err := c.Bind().JSON(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ctx := c.Context()
	var run *execution.Run
	var err error
	switch {
	case request.Definition != "":
		var aWorkflow *model.Workflow
		if aWorkflow, err = s.runtime.DecodeYAMLWorkflow([]byte(request.Definition)); err != nil {
			return failure(c, err)
		}
		if request.Name != "" {
			aWorkflow.Name = request.Name
		}
		run, err = s.runtime.SubmitWorkflow(ctx, aWorkflow, request.Inputs, request.Parameters)
	case request.Workflow != "":
		run, err = s.runtime.Submit(ctx, request.Workflow, request.Inputs, request.Parameters)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "workflow or definition is required"})
	}
	if err != nil {
		return failure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": run.ID})
}

func (s *Server) listRuns(c fiber.Ctx) error {
	ids := split(c.Query("ids"))
	var statuses []execution.RunStatus
	for _, status := range split(c.Query("status")) {
		statuses = append(statuses, execution.RunStatus(status))
	}
	runs, err := s.runtime.Runs(c.Context(), ids, statuses...)
	if err != nil {
		return failure(c, err)
	}
	decoded := c.Query("decoded") == "true"
	views := make([]*RunView, 0, len(runs))
	for _, run := range runs {
		view, err := viewOf(run, decoded)
		if err != nil {
			return failure(c, err)
		}
		views = append(views, view)
	}
	return c.JSON(fiber.Map{"runs": views})
}

func (s *Server) getRun(c fiber.Ctx) error {
	run, err := s.runtime.Run(c.Context(), c.Params("id"))
	if err != nil {
		return failure(c, err)
	}
	view, err := viewOf(run, c.Query("decoded") == "true")
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(view)
}

func (s *Server) getTasks(c fiber.Ctx) error {
	tasks, err := s.runtime.Tasks(c.Context(), c.Params("id"))
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (s *Server) cancel(c fiber.Ctx) error {
	var request CancelRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}
	if err := s.runtime.Cancel(c.Context(), c.Params("id"), request.Reason); err != nil {
		return failure(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) resubmit(c fiber.Ctx) error {
	run, err := s.runtime.Resubmit(c.Context(), c.Params("id"))
	if err != nil {
		return failure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": run.ID})
}

func (s *Server) metrics(c fiber.Ctx) error {
	metrics, err := s.runtime.Metrics(c.Context())
	if err != nil {
		return failure(c, err)
	}
	return c.JSON(metrics)
}

func viewOf(run *execution.Run, decoded bool) (*RunView, error) {
	ret := &RunView{Run: run}
	if decoded {
		ret.Outputs = run.Outputs
		return ret, nil
	}
	if len(run.Outputs) == 0 {
		return ret, nil
	}
	encoded, err := EncodeOutput(run.Outputs)
	if err != nil {
		return nil, err
	}
	ret.Output = encoded
	return ret, nil
}

func failure(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var definitionErr *types.DefinitionError
	switch {
	case errors.As(err, &definitionErr):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, scheduler.ErrRunNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, scheduler.ErrRunFinished):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func split(value string) []string {
	if value == "" {
		return nil
	}
	var ret []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// New creates a server over runtime
func New(runtime Runtime) *Server {
	ret := &Server{runtime: runtime, app: fiber.New()}
	ret.routes()
	return ret
}
