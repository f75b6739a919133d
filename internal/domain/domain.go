package domain

// LifecycleState tracks where a resource sits in its provider's lifecycle.
type LifecycleState string

const (
	LifecycleActive     LifecycleState = "ACTIVE"
	LifecyclePreview    LifecycleState = "PREVIEW"
	LifecycleDeprecated LifecycleState = "DEPRECATED"
)

// AccessState classifies the account's entitlement for one resource.
type AccessState string

const (
	AccessGranted      AccessState = "GRANTED"
	AccessPending      AccessState = "PENDING"
	AccessDenied       AccessState = "DENIED"
	AccessNotRequested AccessState = "NOT_REQUESTED"
)

// ResourceDescriptor describes one discoverable model or cross-region
// profile. ID is the only join key that is stable across sources.
type ResourceDescriptor struct {
	ID                string         `json:"id"`
	DisplayName       string         `json:"display_name,omitempty"`
	ProviderName      string         `json:"provider_name"`
	Regions           []string       `json:"regions,omitempty"`
	InputModalities   []string       `json:"input_modalities,omitempty"`
	OutputModalities  []string       `json:"output_modalities,omitempty"`
	SupportsStreaming bool           `json:"supports_streaming"`
	RequiresApproval  bool           `json:"requires_approval"`
	LifecycleState    LifecycleState `json:"lifecycle_state" enum:"ACTIVE,PREVIEW,DEPRECATED"`
	ReleaseDate       string         `json:"release_date,omitempty" format:"date"`
}

// AccessStatus is a per-descriptor entitlement snapshot.
// HasAccess true implies State == GRANTED.
type AccessStatus struct {
	ID         string      `json:"id"`
	HasAccess  bool        `json:"has_access"`
	State      AccessState `json:"state" enum:"GRANTED,PENDING,DENIED,NOT_REQUESTED"`
	CanRequest bool        `json:"can_request"`
}

// CommandGroup batches the access-request command for one provider namespace.
type CommandGroup struct {
	Provider string   `json:"provider"`
	ModelIDs []string `json:"model_ids"`
	Command  string   `json:"command"`
}

// DiscoveryResult is the immutable snapshot returned by one discovery run.
type DiscoveryResult struct {
	AvailableIDs    []string             `json:"available_ids"`
	Catalog         []ResourceDescriptor `json:"catalog"`
	AccessStatuses  []AccessStatus       `json:"access_statuses"`
	RequestCommands []CommandGroup       `json:"request_commands"`
}

// Run records one completed discovery invocation in the workspace diary.
type Run struct {
	ID             string `json:"id"`
	Region         string `json:"region"`
	StartedAt      string `json:"started_at" format:"date-time"`
	CompletedAt    string `json:"completed_at" format:"date-time"`
	CatalogSource  string `json:"catalog_source"`
	AvailableCount int    `json:"available_count"`
	CatalogCount   int    `json:"catalog_count"`
	GapCount       int    `json:"gap_count"`
}

// Event is one diagnostic diary entry.
type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts" format:"date-time"`
	Type     string `json:"type"`
	RunID    string `json:"run_id,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Payload  string `json:"payload_json"`
}

// APIKey authenticates callers of the HTTP API.
type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
