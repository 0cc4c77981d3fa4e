// Package email provides email sending functionality for Hearth.
//
// This package defines an EmailService interface with an SMTP
// implementation that works with Mailhog in development and any standard
// SMTP relay (Postmark, SES SMTP) in production.
package email

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendLeadAssignedEmail tells an agent that a buyer inquiry was routed
	// or assigned to them.
	SendLeadAssignedEmail(ctx context.Context, to string, lead LeadAssigned) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// LeadAssigned is the data rendered into a lead notification.
type LeadAssigned struct {
	AgentName    string
	LeadID       uuid.UUID
	BuyerName    string
	BuyerEmail   string
	BuyerPhone   string
	Message      string
	ListingTitle string
	ListingCity  string
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "leads@hearth.homes"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Hearth"
)
