package models

import (
	"time"

	"reicrm/internal/finance"
)

type Analysis struct {
	ID         int64                `json:"id"`
	PropertyID int64                `json:"propertyId"`
	CreatedBy  int64                `json:"createdBy"`
	Name       string               `json:"name"`
	Type       finance.AnalysisType `json:"type"`
	Inputs     finance.Inputs       `json:"inputs"`
	Results    finance.Results      `json:"results"`
	Notes      string               `json:"notes,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

type AnalysisFilter struct {
	PropertyID *int64
	Type       *finance.AnalysisType
	CreatedBy  *int64
}
