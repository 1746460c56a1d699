package models

import (
	"encoding/json"

	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/mapping"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
}

// PushRequest represents a request to push a funnel's content to its CRM
type PushRequest struct {
	Force        bool `json:"force"`
	ApprovedOnly bool `json:"approved_only"`
}

// OperationsQuery represents the query string of the operations listing
type OperationsQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// PushResponse represents a finished push
type PushResponse struct {
	Operation *ledger.Operation `json:"operation"`
	Summary   ledger.Summary    `json:"summary"`
	Warnings  []mapping.Warning `json:"warnings"`
}

// OperationListResponse represents a page of push operations
type OperationListResponse struct {
	FunnelID   string              `json:"funnel_id"`
	Operations []*ledger.Operation `json:"operations"`
	Count      int                 `json:"count"`
}

// OperationResponse represents one push operation with its summary
type OperationResponse struct {
	Operation *ledger.Operation `json:"operation"`
	Summary   ledger.Summary    `json:"summary"`
}

// SaveFieldRequest represents an edit of one field
type SaveFieldRequest struct {
	Type     string          `json:"type" validate:"required,oneof=text textarea array object image video_url"`
	Value    json.RawMessage `json:"value" validate:"required"`
	IsCustom bool            `json:"is_custom"`
}

// ApproveSectionResponse represents the result of approving a section
type ApproveSectionResponse struct {
	FunnelID  string `json:"funnel_id"`
	SectionID string `json:"section_id"`
	Approved  int64  `json:"approved"`
}
