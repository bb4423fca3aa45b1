package services

import (
	"context"
	"errors"
	"fmt"

	"mmh_backend/internal/logger"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/registry"
)

// VerificationResult is the outcome of checking a declared company.
// CompanyName is the name to store on the user when Valid; Field names the
// request field that failed otherwise.
type VerificationResult struct {
	Valid       bool
	Reason      string
	Field       string
	CompanyName string
}

type CompanyVerifier interface {
	// LookupName returns the registered name for an ICO.
	LookupName(ctx context.Context, ico string) (string, error)
	// Verify checks the declared name and email domain against the registry.
	// A non-nil error means the registry could not be asked.
	Verify(ctx context.Context, ico, declaredName, email string) (VerificationResult, error)
}

type CompanyVerifierImpl struct {
	registry      registry.Lookuper
	allowFreeMail bool
	metrics       *metrics.Metrics
}

func NewCompanyVerifier(lookuper registry.Lookuper, allowFreeMail bool, m *metrics.Metrics) CompanyVerifier {
	return &CompanyVerifierImpl{
		registry:      lookuper,
		allowFreeMail: allowFreeMail,
		metrics:       m,
	}
}

func (v *CompanyVerifierImpl) LookupName(ctx context.Context, ico string) (string, error) {
	company, err := v.registry.Lookup(ctx, ico)
	switch {
	case err == nil:
		v.metrics.RegistryLookup("found")
		return company.Name, nil
	case errors.Is(err, registry.ErrCompanyNotFound):
		v.metrics.RegistryLookup("not_found")
		return "", err
	default:
		v.metrics.RegistryLookup("unavailable")
		logger.CtxWarn(ctx, "Company registry lookup failed", "ico", ico, "error", err)
		return "", err
	}
}

func (v *CompanyVerifierImpl) Verify(ctx context.Context, ico, declaredName, email string) (VerificationResult, error) {
	registered, err := v.LookupName(ctx, ico)
	if err != nil {
		if errors.Is(err, registry.ErrCompanyNotFound) {
			return VerificationResult{Reason: "No company is registered under this ICO", Field: "ico"}, nil
		}
		return VerificationResult{}, err
	}

	if declaredName == "" {
		return VerificationResult{Valid: true, CompanyName: registered}, nil
	}

	if !registry.NamesMatch(declaredName, registered) {
		return VerificationResult{
			Reason: fmt.Sprintf("Company name does not match the registry entry %q", registered),
			Field:  "companyName",
		}, nil
	}

	domain := registry.EmailDomain(email)
	switch {
	case registry.IsFreeMailDomain(domain):
		if !v.allowFreeMail {
			return VerificationResult{Reason: "Please register with your company email address", Field: "email"}, nil
		}
	case !registry.DomainMatches(email, registered) && !registry.DomainMatches(email, declaredName):
		return VerificationResult{
			Reason: fmt.Sprintf("Email domain %s does not appear to belong to %s", domain, registered),
			Field:  "email",
		}, nil
	}

	return VerificationResult{Valid: true, CompanyName: declaredName}, nil
}
