// Package server exposes the discovery pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"modelscout/internal/engine"
	"modelscout/internal/inventory"
	"modelscout/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"run not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the discovery API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("ModelScout API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDiscover(group, cfg.Engine)
	registerModels(group, cfg.Engine)
	registerAccess(group, cfg.Engine)
	registerCommands(group, cfg.Engine)
	registerRuns(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>ModelScout API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDiscover(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "discover",
		Method:      http.MethodPost,
		Path:        "/discover",
		Summary:     "Run the full discovery pipeline",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DiscoverRequest `json:"body"`
	}) (*struct {
		Body DiscoverResponse `json:"body"`
	}, error) {
		result := e.Discover(ctx, engine.DiscoverOptions{
			Region: input.Body.Region,
			Filters: inventory.Filters{
				Provider:          input.Body.ByProvider,
				OutputModality:    input.Body.ByOutputModality,
				InferenceType:     input.Body.ByInferenceType,
				CustomizationType: input.Body.ByCustomizationType,
			},
		})
		return &struct {
			Body DiscoverResponse `json:"body"`
		}{Body: discoverResponse(result)}, nil
	})
}

func registerModels(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/models",
		Summary:     "Acquire the model catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ModelsResponse `json:"body"`
	}, error) {
		models, source := e.Models(ctx)
		return &struct {
			Body ModelsResponse `json:"body"`
		}{Body: ModelsResponse{Source: source, Models: models}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-available",
		Method:      http.MethodGet,
		Path:        "/models/available",
		Summary:     "Union of live identifiers across configured regions",
	}, func(ctx context.Context, input *struct {
		ByProvider          string `query:"by_provider"`
		ByOutputModality    string `query:"by_output_modality"`
		ByInferenceType     string `query:"by_inference_type"`
		ByCustomizationType string `query:"by_customization_type"`
	}) (*struct {
		Body AvailableResponse `json:"body"`
	}, error) {
		ids := e.Available(ctx, inventory.Filters{
			Provider:          input.ByProvider,
			OutputModality:    input.ByOutputModality,
			InferenceType:     input.ByInferenceType,
			CustomizationType: input.ByCustomizationType,
		})
		return &struct {
			Body AvailableResponse `json:"body"`
		}{Body: AvailableResponse{IDs: emptySlice(ids)}}, nil
	})
}

func registerAccess(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "resolve-access",
		Method:      http.MethodGet,
		Path:        "/access",
		Summary:     "Entitlement status per catalog identifier",
	}, func(ctx context.Context, input *struct {
		Region string `query:"region"`
		IDs    string `query:"ids" doc:"Comma-separated identifiers; empty means the whole catalog"`
	}) (*struct {
		Body AccessResponse `json:"body"`
	}, error) {
		var ids []string
		for _, id := range strings.Split(input.IDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		region := input.Region
		if region == "" && e.Config != nil {
			region = e.Config.Discovery.DefaultRegion
		}
		statuses := e.ResolveAccess(ctx, region, ids)
		return &struct {
			Body AccessResponse `json:"body"`
		}{Body: AccessResponse{Region: region, Statuses: emptySlice(statuses)}}, nil
	})
}

func registerCommands(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "synthesize-commands",
		Method:      http.MethodPost,
		Path:        "/commands",
		Summary:     "Synthesize access-request commands for gapped models",
	}, func(ctx context.Context, input *struct {
		Body CommandsRequest `json:"body"`
	}) (*struct {
		Body CommandsResponse `json:"body"`
	}, error) {
		groups := e.Commands(ctx, input.Body.Region, input.Body.Justification)
		return &struct {
			Body CommandsResponse `json:"body"`
		}{Body: CommandsResponse{Groups: emptySlice(groups)}}, nil
	})
}

func registerRuns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "Recorded discovery runs",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body RunsResponse `json:"body"`
	}, error) {
		if e.DB == nil {
			return nil, newAPIError(http.StatusConflict, "no_workspace", "runs require a workspace database", nil)
		}
		runs, err := e.Repo.ListRuns(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunsResponse `json:"body"`
		}{Body: RunsResponse{Runs: emptySlice(runs)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Diagnostic diary entries",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		RunID string `query:"run_id"`
		Limit int    `query:"limit"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		if e.DB == nil {
			return nil, newAPIError(http.StatusConflict, "no_workspace", "events require a workspace database", nil)
		}
		evts, err := e.Repo.ListEvents(ctx, input.RunID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: EventsResponse{Events: emptySlice(evts)}}, nil
	})
}
