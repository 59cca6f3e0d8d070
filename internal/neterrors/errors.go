// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package neterrors turns network failures reaching the host, its database
// server or its toolkit gateway into troubleshooting text.
package neterrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"powerexec/cli/internal/logging"

	"github.com/pterm/pterm"
)

// Category is the kind of network failure.
type Category int

const (
	Generic Category = iota
	Timeout
	DNS
	Refused
	TLS
	Server
)

// Classify picks the Category of err.
func Classify(err error) Category {
	switch {
	case err == nil:
		return Generic
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return Refused
	case isTLSError(err):
		return TLS
	case isServerError(err.Error()):
		return Server
	}
	return Generic
}

// FormatNetworkError prints troubleshooting text for err and returns it
// wrapped for logging.
func FormatNetworkError(err error, context string) error {
	if err == nil {
		return nil
	}
	pterm.Println(Describe(err, context))
	return fmt.Errorf("network error: %w", err)
}

// Describe returns the troubleshooting text for err.
func Describe(err error, context string) string {
	var b strings.Builder
	switch Classify(err) {
	case Timeout:
		fmt.Fprintf(&b, "Connection timeout while %s\n\n", context)
		b.WriteString("The host took too long to respond. This could mean:\n")
		b.WriteString("  • The host or its database server job is under heavy load\n")
		b.WriteString("  • A firewall is dropping the connection\n")
	case DNS:
		fmt.Fprintf(&b, "Cannot resolve the host name while %s\n\n", context)
		b.WriteString("Check the host name in the DSN and your DNS settings.\n")
	case Refused:
		fmt.Fprintf(&b, "Connection refused while %s\n\n", context)
		b.WriteString("The host is not accepting connections on that port. Check that:\n")
		b.WriteString("  • The database server or gateway is started (STRHOSTSVR, STRTCPSVR)\n")
		b.WriteString("  • The port in the DSN is correct\n")
	case TLS:
		fmt.Fprintf(&b, "Secure connection failed while %s\n\n", context)
		b.WriteString("Check the host certificate in DCM and the system clock.\n")
	case Server:
		fmt.Fprintf(&b, "Gateway error while %s\n\n", context)
		b.WriteString("The toolkit endpoint answered with a server error.\n")
		b.WriteString("Check the XMLSERVICE CGI or gateway job log on the host.\n")
	default:
		fmt.Fprintf(&b, "Cannot reach the host while %s\n\n", context)
	}
	if details := logging.Mask(err.Error()); details != "" {
		if len(details) > 200 {
			details = details[:200] + "..."
		}
		b.WriteString("\nTechnical details: " + details)
	}
	return b.String()
}

func isTimeoutError(err error) bool {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isTLSError(err error) bool {
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "tls") ||
		strings.Contains(lower, "x509") ||
		strings.Contains(lower, "certificate") ||
		strings.Contains(lower, "handshake")
}

func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{"returned 500", "returned 502", "returned 503", "returned 504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ExtractHostFromURL extracts the host name from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "host"
	}
	return u.Host
}
