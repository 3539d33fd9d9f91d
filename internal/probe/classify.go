package probe

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/hamed0406/statusboard/internal/domain"
)

// Name-resolution and routing failures: the origin cannot be reached at all.
var downIndicators = []string{
	"enotfound",
	"getaddrinfo",
	"name not resolved",
	"no such host",
	"network is unreachable",
	"host unreachable",
}

// Failures that still show the origin exists: TLS trouble, an HTTP status
// surfaced inside an error, or a connection that was actively refused/reset.
var warningIndicators = []string{
	"certificate",
	"ssl",
	"tls",
	"self-signed",
	"expired",
	"untrusted",
	"bad certificate",
	"cert",
	"handshake",
	"protocol",
	"unable to verify",
	"hostname mismatch",
	"404",
	"403",
	"401",
	"429",
	"500",
	"502",
	"503",
	"504",
	"connection refused",
	"connection reset",
	"connection timeout",
	"network unreachable",
}

// ClassifyResponse maps a received status code to a Status. Only UP is
// subject to the slow-response downgrade.
func ClassifyResponse(code int, elapsedMs int64) domain.Status {
	var s domain.Status
	switch {
	case code >= 200 && code <= 299:
		s = domain.StatusUp
	case code >= 300 && code <= 399:
		s = domain.StatusWarning
	case code >= 400 && code <= 599:
		s = domain.StatusWarning
	default:
		s = domain.StatusDown
	}
	if s == domain.StatusUp && elapsedMs > SlowResponseMs {
		s = domain.StatusWarning
	}
	return s
}

// ClassifyError maps a failed attempt to a Status. Typed errors and message
// keywords feed the same two indicator sets; a down indicator always wins
// over a warning indicator.
func ClassifyError(err error) domain.Status {
	if err == nil {
		return domain.StatusDown
	}
	msg := strings.ToLower(errorText(err))

	status := domain.StatusDown
	if warningType(err) || containsAny(msg, warningIndicators) {
		status = domain.StatusWarning
	}
	if downType(err) || containsAny(msg, downIndicators) {
		status = domain.StatusDown
	}
	return status
}

// ClassifyMessage applies only the keyword rules, for errors that reach us
// as plain text.
func ClassifyMessage(msg string) domain.Status {
	lower := strings.ToLower(msg)
	status := domain.StatusDown
	if containsAny(lower, warningIndicators) {
		status = domain.StatusWarning
	}
	if containsAny(lower, downIndicators) {
		status = domain.StatusDown
	}
	return status
}

// errorText strips the `Get "<url>": ` prefix so words in the target URL
// cannot match a keyword.
func errorText(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return err.Error()
}

func downType(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH)
}

func warningType(err error) bool {
	var (
		verifyErr  *tls.CertificateVerificationError
		alertErr   tls.AlertError
		recordErr  tls.RecordHeaderError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &alertErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr):
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
