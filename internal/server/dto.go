package server

import (
	"modelscout/internal/domain"
)

type DiscoverRequest struct {
	Region              string `json:"region,omitempty" example:"us-west-2"`
	ByProvider          string `json:"by_provider,omitempty" example:"anthropic"`
	ByOutputModality    string `json:"by_output_modality,omitempty" example:"TEXT"`
	ByInferenceType     string `json:"by_inference_type,omitempty" example:"ON_DEMAND"`
	ByCustomizationType string `json:"by_customization_type,omitempty"`
}

type DiscoverResponse struct {
	AvailableIDs    []string                    `json:"available_ids"`
	Catalog         []domain.ResourceDescriptor `json:"catalog"`
	AccessStatuses  []domain.AccessStatus       `json:"access_statuses"`
	RequestCommands []domain.CommandGroup       `json:"request_commands"`
}

func discoverResponse(r domain.DiscoveryResult) DiscoverResponse {
	return DiscoverResponse{
		AvailableIDs:    emptySlice(r.AvailableIDs),
		Catalog:         r.Catalog,
		AccessStatuses:  r.AccessStatuses,
		RequestCommands: emptySlice(r.RequestCommands),
	}
}

type ModelsResponse struct {
	Source string                      `json:"source" example:"docs"`
	Models []domain.ResourceDescriptor `json:"models"`
}

type AvailableResponse struct {
	IDs []string `json:"ids"`
}

type AccessResponse struct {
	Region   string                `json:"region"`
	Statuses []domain.AccessStatus `json:"statuses"`
}

type CommandsRequest struct {
	Region        string `json:"region,omitempty" example:"us-west-2"`
	Justification string `json:"justification,omitempty"`
}

type CommandsResponse struct {
	Groups []domain.CommandGroup `json:"groups"`
}

type RunsResponse struct {
	Runs []domain.Run `json:"runs"`
}

type EventsResponse struct {
	Events []domain.Event `json:"events"`
}

// emptySlice keeps JSON arrays as [] instead of null.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
