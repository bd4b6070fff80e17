// Package models defines core data structures for providers, chat requests, and retrieval results.
package models

import (
	"fmt"
	"strings"
)

// FeePlaceholder is shown in place of a fee when a provider has none on record.
const FeePlaceholder = "Contact for fee"

// Provider is a healthcare provider record as stored in the provider database.
// Records are created by import and are never mutated by the retrieval pipeline.
type Provider struct {
	ID          int64  `json:"id" yaml:"id" db:"id"`
	Name        string `json:"name" yaml:"name" db:"name"`
	Designation string `json:"designation,omitempty" yaml:"designation,omitempty" db:"designation"`
	Specialty   string `json:"speciality" yaml:"speciality" db:"speciality"`
	Location    string `json:"location" yaml:"location" db:"location"`
	Fee         *int   `json:"fee" yaml:"fee,omitempty" db:"fee"`
	Keywords    string `json:"keywords" yaml:"keywords" db:"keywords"`
	Symptoms    string `json:"symptom_to_speciality" yaml:"symptom_to_speciality" db:"symptom_to_speciality"`
	Diseases    string `json:"disease_examples" yaml:"disease_examples" db:"disease_examples"`
}

// Profile returns the descriptive text that is encoded into the provider's index vector.
func (p *Provider) Profile() string {
	return fmt.Sprintf("Speciality: %s. Keywords: %s. Symptoms: %s. Diseases: %s. Location: %s",
		p.Specialty, p.Keywords, p.Symptoms, p.Diseases, p.Location)
}

// Payload returns the denormalized snapshot stored alongside the provider's vector.
func (p *Provider) Payload() Payload {
	return Payload{
		ID:        p.ID,
		Name:      p.Name,
		Specialty: p.Specialty,
		Location:  p.Location,
		Fee:       p.Fee,
	}
}

// Summary returns the display-safe view of the provider.
func (p *Provider) Summary() ProviderSummary {
	var fee interface{} = FeePlaceholder
	if p.Fee != nil {
		fee = *p.Fee
	}
	return ProviderSummary{
		Name:      p.Name,
		Specialty: p.Specialty,
		Location:  p.Location,
		Fee:       fee,
	}
}

// Validate checks the fields required to store a provider.
func (p *Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if strings.TrimSpace(p.Specialty) == "" {
		return fmt.Errorf("provider speciality cannot be empty")
	}
	if p.Fee != nil && *p.Fee < 0 {
		return fmt.Errorf("provider fee cannot be negative: %d", *p.Fee)
	}
	return nil
}

// Payload is the provider snapshot carried by an index entry. It reflects the record at
// index build time and can drift from the store until the next rebuild.
type Payload struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"speciality"`
	Location  string `json:"location"`
	Fee       *int   `json:"fee,omitempty"`
}

// ProviderSummary is the provider card returned to chat clients.
// Fee is either the integer fee or FeePlaceholder.
type ProviderSummary struct {
	Name      string      `json:"name"`
	Specialty string      `json:"speciality"`
	Location  string      `json:"location"`
	Fee       interface{} `json:"fee"`
}

// ProviderFilter selects providers by case-insensitive substring. Empty fields do not filter.
type ProviderFilter struct {
	Keyword   string
	Specialty string
}
