package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/delordemm1/routine-notifier/internal/contextx"
)

// Problem is an RFC 9457 problem+json body with extensions:
//   - code: stable business code (e.g., ErrTemplateInUse)
//   - context: extra error payload (e.g., missing template keys, the failed log id)
//   - requestId: propagated from chi middleware.RequestID
//   - correlationId: the id stamped on queued notifications
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Errors []*huma.ErrorDetail `json:"errors,omitempty"`

	Code          string `json:"code,omitempty"`
	Context       any    `json:"context,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (p *Problem) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	if p.Title != "" {
		return p.Title
	}
	return http.StatusText(p.GetStatus())
}

// GetStatus implements huma.StatusError.
func (p *Problem) GetStatus() int {
	if p.Status == 0 {
		return http.StatusInternalServerError
	}
	return p.Status
}

// ContentType implements huma.ContentTypeFilter.
func (p *Problem) ContentType(ct string) string {
	switch ct {
	case "application/json":
		return "application/problem+json"
	case "application/cbor":
		return "application/problem+cbor"
	}
	return ct
}

// DomainProblem is satisfied by module error types (notify.DomainError,
// validation.ValidationError) so they can be rendered without httpx importing them.
type DomainProblem interface {
	ProblemCode() string
	ProblemStatus() int
	ProblemTitle() string
	ProblemDetail() string
	ProblemTypeURI() string
	ProblemContext() any
}

// ToProblem converts err into a response error.
//
//   - huma.StatusError values pass through unchanged.
//   - DomainProblem values become a Problem carrying their code and context.
//   - A cancelled or timed out request becomes a 503.
//   - Anything else becomes a generic 500 so internal messages never leak.
func ToProblem(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(huma.StatusError); ok {
		return err
	}

	var dp DomainProblem
	if errors.As(err, &dp) {
		status := dp.ProblemStatus()
		typeURI := dp.ProblemTypeURI()
		if typeURI == "" {
			typeURI = "urn:problem:" + toKebab(dp.ProblemCode())
		}
		return newProblem(ctx, typeURI, defaultTitle(dp.ProblemTitle(), status), status, defaultDetail(dp.ProblemDetail(), status), dp.ProblemCode(), dp.ProblemContext())
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newProblem(ctx, "urn:problem:unavailable", http.StatusText(http.StatusServiceUnavailable),
			http.StatusServiceUnavailable, "The request timed out. Please try again.", "ErrUnavailable", nil)
	}

	return InternalProblem(ctx, "")
}

// InternalProblem builds a generic 500. An empty detail uses a safe default.
func InternalProblem(ctx context.Context, detail string) *Problem {
	if detail == "" {
		detail = "Something went wrong. Please try again later."
	}
	return newProblem(ctx, "urn:problem:internal", http.StatusText(http.StatusInternalServerError),
		http.StatusInternalServerError, detail, "ErrInternal", nil)
}

func newProblem(ctx context.Context, typeURI, title string, status int, detail, code string, extra any) *Problem {
	return &Problem{
		Type:          typeURI,
		Title:         title,
		Status:        status,
		Detail:        detail,
		Code:          code,
		Context:       extra,
		RequestID:     middleware.GetReqID(ctx),
		CorrelationID: contextx.CorrelationID(ctx),
	}
}

func defaultTitle(title string, status int) string {
	if title != "" {
		return title
	}
	return http.StatusText(status)
}

func defaultDetail(detail string, status int) string {
	if detail != "" {
		return detail
	}
	switch status {
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusBadRequest:
		return "Bad request"
	default:
		return http.StatusText(status)
	}
}

// toKebab converts codes like ErrTemplateInUse or TEMPLATE_IN_USE to
// err-template-in-use and template-in-use.
func toKebab(s string) string {
	var b strings.Builder
	prevLowerOrDigit := false
	for _, r := range s {
		if r == '_' || r == ' ' || r == '-' {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
			prevLowerOrDigit = false
			continue
		}
		if unicode.IsUpper(r) && prevLowerOrDigit {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
		prevLowerOrDigit = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}
