package http

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var rawSpec []byte

var (
	swaggerOnce sync.Once
	swagger     *openapi3.T
	swaggerErr  error
)

// GetSwagger returns the parsed API document served at /openapi.yaml.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		swagger, swaggerErr = loader.LoadFromData(rawSpec)
	})
	return swagger, swaggerErr
}

// GetGraphParams defines parameters for GetGraph.
type GetGraphParams struct {
	Selected *string `form:"selected,omitempty" json:"selected,omitempty"`
}

// SubscribeEventsParams defines parameters for SubscribeEvents.
type SubscribeEventsParams struct {
	Since *uint64 `form:"since,omitempty" json:"since,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetInfo(w http.ResponseWriter, r *http.Request)
	// (GET /tree)
	GetTree(w http.ResponseWriter, r *http.Request)
	// (GET /nodes/{id})
	GetNode(w http.ResponseWriter, r *http.Request, id string)
	// (GET /nodes/{id}/tooltip)
	GetTooltip(w http.ResponseWriter, r *http.Request, id string)
	// (POST /nodes/{id}/children)
	AddChild(w http.ResponseWriter, r *http.Request, parent string)
	// (DELETE /nodes/{id}/children/{child})
	RemoveChild(w http.ResponseWriter, r *http.Request, parent string, child string)
	// (GET /gate)
	GetGate(w http.ResponseWriter, r *http.Request)
	// (POST /continue)
	PostContinue(w http.ResponseWriter, r *http.Request)
	// (GET /graph)
	GetGraph(w http.ResponseWriter, r *http.Request, params GetGraphParams)
	// (GET /events)
	SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams)
}

// InvalidParamFormatError is reported when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper binds request parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return value, true
}

func (siw *ServerInterfaceWrapper) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}
	siw.Handler.GetNode(w, r, id)
}

func (siw *ServerInterfaceWrapper) GetTooltip(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}
	siw.Handler.GetTooltip(w, r, id)
}

func (siw *ServerInterfaceWrapper) AddChild(w http.ResponseWriter, r *http.Request) {
	parent, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}
	siw.Handler.AddChild(w, r, parent)
}

func (siw *ServerInterfaceWrapper) RemoveChild(w http.ResponseWriter, r *http.Request) {
	parent, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}
	child, ok := siw.pathParam(w, r, "child")
	if !ok {
		return
	}
	siw.Handler.RemoveChild(w, r, parent, child)
}

func (siw *ServerInterfaceWrapper) GetGraph(w http.ResponseWriter, r *http.Request) {
	var params GetGraphParams
	if err := runtime.BindQueryParameter("form", true, false, "selected", r.URL.Query(), &params.Selected); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "selected", Err: err})
		return
	}
	siw.Handler.GetGraph(w, r, params)
}

func (siw *ServerInterfaceWrapper) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	var params SubscribeEventsParams
	if err := runtime.BindQueryParameter("form", true, false, "since", r.URL.Query(), &params.Since); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "since", Err: err})
		return
	}
	siw.Handler.SubscribeEvents(w, r, params)
}

// HandlerFromMux registers every route of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		},
	}

	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/tree", si.GetTree)
	r.Get("/nodes/{id}", wrapper.GetNode)
	r.Get("/nodes/{id}/tooltip", wrapper.GetTooltip)
	r.Post("/nodes/{id}/children", wrapper.AddChild)
	r.Delete("/nodes/{id}/children/{child}", wrapper.RemoveChild)
	r.Get("/gate", si.GetGate)
	r.Post("/continue", si.PostContinue)
	r.Get("/graph", wrapper.GetGraph)
	r.Get("/events", wrapper.SubscribeEvents)
	return r
}
