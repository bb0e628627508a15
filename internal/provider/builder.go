package provider

import (
	"strings"
	"time"

	"kyc_link_gateway/internal/apperrors"
	"kyc_link_gateway/internal/signature"
)

type Signer interface {
	Sign(timestamp string) string
	PartnerID() string
}

type Builder struct {
	signer  Signer
	partner PartnerProfile
	now     func() time.Time
}

func NewBuilder(signer Signer, partner PartnerProfile) *Builder {
	return &Builder{
		signer:  signer,
		partner: partner,
		now:     time.Now,
	}
}

// Build фиксирует текущий момент один раз: одна и та же строка времени подписывается и уходит в запросе.
func (b *Builder) Build(correlationID, cleanURL string, singleUse bool, idConfig IDConfig) (*VerificationLinkRequest, SignedEnvelope, error) {
	if err := validateIDConfig(idConfig); err != nil {
		return nil, SignedEnvelope{}, err
	}

	issuedAt := b.now().UTC().Truncate(time.Millisecond)
	timestamp := signature.FormatTimestamp(issuedAt)

	request := &VerificationLinkRequest{
		CorrelationID: correlationID,
		ReturnURL:     cleanURL,
		IssuedAt:      issuedAt,
		SingleUse:     singleUse,
		IDConfig:      idConfig,
		Partner:       b.partner,
	}

	envelope := SignedEnvelope{
		Timestamp: timestamp,
		Signature: b.signer.Sign(timestamp),
	}

	return request, envelope, nil
}

// Payload собирает тело запроса к провайдеру.
func (b *Builder) Payload(request *VerificationLinkRequest, envelope SignedEnvelope) LinkPayload {
	return LinkPayload{
		PartnerID:            b.signer.PartnerID(),
		Timestamp:            envelope.Timestamp,
		Signature:            envelope.Signature,
		Name:                 request.Partner.NameFor(request.SingleUse),
		CompanyName:          request.Partner.CompanyName,
		CallbackURL:          request.Partner.CallbackURL,
		DataPrivacyPolicyURL: request.Partner.PrivacyPolicyURL,
		IsSingleUse:          request.SingleUse,
		UserID:               request.CorrelationID,
		RedirectURL:          request.ReturnURL,
		IDTypes:              []IDConfig{request.IDConfig},
	}
}

func validateIDConfig(cfg IDConfig) error {
	fields := []struct {
		name  string
		value string
	}{
		{"country", cfg.Country},
		{"id_type", cfg.IDType},
		{"verification_method", cfg.VerificationMethod},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &apperrors.ValidationError{Field: f.name, Reason: "must not be empty"}
		}
	}
	return nil
}
