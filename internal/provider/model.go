package provider

import (
	"encoding/json"
	"time"
)

// IDConfig задает документ и способ проверки для конкретной юрисдикции.
type IDConfig struct {
	Country            string `json:"country"`
	IDType             string `json:"id_type"`
	VerificationMethod string `json:"verification_method"`
}

// PartnerProfile - неизменяемые поля партнера, которые провайдер требует в каждом запросе.
type PartnerProfile struct {
	LinkName         string
	MultiUseLinkName string
	CompanyName      string
	CallbackURL      string
	PrivacyPolicyURL string
}

func (p PartnerProfile) NameFor(singleUse bool) string {
	if !singleUse && p.MultiUseLinkName != "" {
		return p.MultiUseLinkName
	}
	return p.LinkName
}

type VerificationLinkRequest struct {
	CorrelationID string
	ReturnURL     string
	IssuedAt      time.Time
	SingleUse     bool
	IDConfig      IDConfig
	Partner       PartnerProfile
}

type SignedEnvelope struct {
	Timestamp string
	Signature string
}

// LinkPayload - тело POST /v2/smile_links.
type LinkPayload struct {
	PartnerID            string     `json:"partner_id"`
	Timestamp            string     `json:"timestamp"`
	Signature            string     `json:"signature"`
	Name                 string     `json:"name"`
	CompanyName          string     `json:"company_name"`
	CallbackURL          string     `json:"callback_url"`
	DataPrivacyPolicyURL string     `json:"data_privacy_policy_url"`
	IsSingleUse          bool       `json:"is_single_use"`
	UserID               string     `json:"user_id,omitempty"`
	RedirectURL          string     `json:"redirect_url,omitempty"`
	IDTypes              []IDConfig `json:"id_types"`
}

// LinkCreationResult хранит ответ провайдера как есть и извлеченные из него поля.
type LinkCreationResult struct {
	Raw     json.RawMessage
	LinkURL string
	RefID   string
}
