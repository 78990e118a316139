// Package register talks to the Risk Register service that owns canonical risk records.
package register

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/models"
)

// Category is the Risk Register's fixed risk category.
type Category string

const (
	CategoryCompliance      Category = "compliance"
	CategoryConfidentiality Category = "confidentiality"
	CategoryAvailability    Category = "availability"
	CategoryFinancial       Category = "financial"
	CategoryReputation      Category = "reputation"
)

// Defaults applied to every promoted risk.
const (
	DefaultImpactType   = "Compliance"
	DefaultOwnerRole    = "Risk Manager"
	DefaultResponseType = "mitigate"
)

// MapCategory maps a free-text category onto the register's enum by keyword
// containment. Anything unrecognized is compliance.
func MapCategory(category string) Category {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "privacy"), strings.Contains(c, "confidential"):
		return CategoryConfidentiality
	case strings.Contains(c, "availability"):
		return CategoryAvailability
	case strings.Contains(c, "financial"):
		return CategoryFinancial
	case strings.Contains(c, "reputation"):
		return CategoryReputation
	default:
		return CategoryCompliance
	}
}

// Payload is the risk-creation request accepted by the Risk Register.
type Payload struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Threat            string   `json:"threat"`
	Vulnerability     string   `json:"vulnerability"`
	ImpactDescription string   `json:"impact_description"`
	ImpactType        string   `json:"impact_type"`
	Likelihood        int      `json:"likelihood"`
	Impact            int      `json:"impact"`
	Category          Category `json:"category"`
	OwnerRole         string   `json:"owner_role"`
	ResponseType      string   `json:"response_type"`
}

// PayloadFor builds the creation request for a risk candidate. An empty ownerRole
// falls back to DefaultOwnerRole.
func PayloadFor(r models.ExtractedRisk, ownerRole string) Payload {
	if ownerRole == "" {
		ownerRole = DefaultOwnerRole
	}
	return Payload{
		Title:             r.Title,
		Description:       r.Description,
		Threat:            r.Threat,
		Vulnerability:     r.Vulnerability,
		ImpactDescription: r.ImpactDescription,
		ImpactType:        DefaultImpactType,
		Likelihood:        r.Likelihood,
		Impact:            r.Impact,
		Category:          MapCategory(r.Category),
		OwnerRole:         ownerRole,
		ResponseType:      DefaultResponseType,
	}
}

// Register creates canonical risk records and returns their identifiers.
type Register interface {
	CreateRisk(ctx context.Context, organizationID, userID string, p Payload) (string, error)
}

// LocalIDPrefix marks ids issued by Noop. They do not exist in any Risk Register.
const LocalIDPrefix = "local-"

// IsLocalID reports whether id was issued by Noop.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// Noop accepts every risk without contacting a service. It is used when no
// Risk Register URL is configured.
type Noop struct {
	Logger *zap.Logger
}

// CreateRisk logs the payload and returns a locally generated id carrying LocalIDPrefix.
func (n Noop) CreateRisk(_ context.Context, organizationID, _ string, p Payload) (string, error) {
	id := LocalIDPrefix + uuid.NewString()
	if n.Logger != nil {
		n.Logger.Info("risk register not configured; risk accepted locally",
			zap.String("organization_id", organizationID),
			zap.String("risk_id", id),
			zap.String("title", p.Title),
			zap.String("category", string(p.Category)))
	}
	return id, nil
}
