package entity

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
)

// DocumentRef points at a citizen-submitted file in the blob store.
type DocumentRef struct {
	Key        string    `json:"key"`
	Name       string    `json:"name,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
	Late       bool      `json:"late,omitempty"` // delivered after intake
}

// Case represents a case row for data transfer between layers.
type Case struct {
	Protocol            string               `json:"protocol"`
	Status              constants.CaseStatus `json:"status"`
	ActionType          constants.ActionType `json:"action_type"`
	FormPayload         json.RawMessage      `json:"form_payload,omitempty"`
	Documents           []DocumentRef        `json:"documents"`
	ExtractedText       *string              `json:"extracted_text,omitempty"`
	Narrative           *string              `json:"narrative,omitempty"`
	NarrativeSource     *string              `json:"narrative_source,omitempty"`
	PetitionKey         *string              `json:"petition_key,omitempty"`
	DeclarationKey      *string              `json:"declaration_key,omitempty"`
	ErrorMessage        *string              `json:"error_message,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	ProcessingStartedAt *time.Time           `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time           `json:"processed_at,omitempty"`
	FinishedAt          *time.Time           `json:"finished_at,omitempty"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// DocumentKey returns the stored key for a generated document kind, if any.
func (c *Case) DocumentKey(kind constants.DocumentKind) string {
	var p *string
	switch kind {
	case constants.DocPetition:
		p = c.PetitionKey
	case constants.DocDeclaration:
		p = c.DeclarationKey
	}
	if p == nil {
		return ""
	}
	return *p
}

// CaseFilter narrows case listings.
type CaseFilter struct {
	Statuses []constants.CaseStatus
	From     *time.Time
	To       *time.Time
	Limit    int
}
