// Package provision implements the management API: starting new backends
// on demand and inspecting the routing table.
package provision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	nullLog "github.com/sirupsen/logrus/hooks/test"
	"github.com/xeipuuv/gojsonschema"

	"github.com/chandankrsah09/Docker-TRA/registry"
)

// maxBodySize bounds POST /containers request bodies.
const maxBodySize = 64 * 1024

// Engine creates and starts backends.  It is implemented by
// dockerapi.Client.
type Engine interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	CreateAndStart(ctx context.Context, ref string) (string, error)
}

// Snapshotter lists the current routing table.
type Snapshotter interface {
	Snapshot() []registry.Endpoint
}

// CreateRequest is the body of POST /containers.
type CreateRequest struct {
	Image string `json:"image"`
	Tag   string `json:"tag" default:"latest"`
}

// Ref is the image reference the request names.
func (cr CreateRequest) Ref() string {
	return cr.Image + ":" + cr.Tag
}

type createResponse struct {
	Status    string `json:"status"`
	Container string `json:"container"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// API serves the management endpoints.  Provisioning never writes the
// registry; new backends are picked up through their start event.
type API struct {
	engine  Engine
	routes  Snapshotter
	domain  string
	logger  *logrus.Logger
	metrics http.Handler
	schema  *gojsonschema.Schema
}

// New creates an API.  Names of created backends are reported as
// "<name>.<domain>".
func New(engine Engine, routes Snapshotter, domain string, logger *logrus.Logger) (*API, error) {
	if engine == nil || routes == nil {
		return nil, errors.New("provision: engine and routes are required")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(createContainerSchema))
	if err != nil {
		return nil, errors.Wrap(err, "compiling request schema")
	}
	if logger == nil {
		logger, _ = nullLog.NewNullLogger()
	}
	return &API{
		engine:  engine,
		routes:  routes,
		domain:  domain,
		logger:  logger,
		metrics: promhttp.Handler(),
		schema:  schema,
	}, nil
}

// RegisterService adds the management routes to r.
func (api *API) RegisterService(r *mux.Router) {
	r.HandleFunc("/containers", api.CreateContainer).Methods("POST")
	r.HandleFunc("/routes", api.Routes).Methods("GET")
	r.Handle("/metrics", api.metrics).Methods("GET")
}

// CreateContainer pulls the requested image when it is missing, then
// creates and starts a backend from it.
func (api *API) CreateContainer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	req, err := api.decodeRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref := req.Ref()
	log := api.logger.WithField("image", ref)
	ctx := r.Context()

	exists, err := api.engine.ImageExists(ctx, ref)
	if err != nil {
		log.Errorf("could not list images: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !exists {
		if err := api.engine.PullImage(ctx, ref); err != nil {
			log.Errorf("pull failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	name, err := api.engine.CreateAndStart(ctx, ref)
	if err != nil {
		log.Errorf("could not start container: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.WithField("backend", name+"."+api.domain).Info("provisioned")

	writeJSON(w, http.StatusOK, createResponse{
		Status:    "success",
		Container: name + "." + api.domain,
	})
}

// Routes lists the registry contents sorted by key.
func (api *API) Routes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.routes.Snapshot())
}

func (api *API) decodeRequest(body []byte) (CreateRequest, error) {
	var req CreateRequest
	result, err := api.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return req, errors.Wrap(err, "invalid JSON")
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return req, errors.Errorf("validation failed: %s", strings.Join(problems, "; "))
	}

	defaults.SetDefaults(&req)
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.Wrap(err, "invalid request")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Status: "error", Message: message})
}
