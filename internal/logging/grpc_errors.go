// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"

	"github.com/pterm/pterm"
)

// GatewayErrorType is the category of a toolkit gateway failure.
type GatewayErrorType int

const (
	GatewayErrorUnknown GatewayErrorType = iota
	GatewayErrorNetwork
	GatewayErrorAuth
	GatewayErrorTimeout
	GatewayErrorInternal
	GatewayErrorUnavailable
)

// ParseGatewayError categorizes a transport error message from the gRPC or
// HTTP toolkit gateway.
func ParseGatewayError(errMsg string) GatewayErrorType {
	lower := strings.ToLower(errMsg)

	if strings.Contains(lower, "rst_stream") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") {
		return GatewayErrorNetwork
	}
	if strings.Contains(lower, "internal") || strings.Contains(lower, "returned 500") {
		return GatewayErrorInternal
	}
	if strings.Contains(lower, "unavailable") || strings.Contains(lower, "returned 503") {
		return GatewayErrorUnavailable
	}
	if strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") {
		return GatewayErrorTimeout
	}
	if strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "permissiondenied") || strings.Contains(lower, "returned 401") ||
		strings.Contains(lower, "returned 403") {
		return GatewayErrorAuth
	}
	return GatewayErrorUnknown
}

// FormatGatewayError renders a gateway failure for the terminal.
func FormatGatewayError(errMsg string) string {
	errType := ParseGatewayError(errMsg)

	var builder strings.Builder
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Toolkit gateway call failed"))
	builder.WriteString("\n\n")

	switch errType {
	case GatewayErrorNetwork:
		builder.WriteString("The connection to the toolkit gateway was refused or reset.\n")
		builder.WriteString("Check that the gateway is running and reachable from this host.\n")
	case GatewayErrorInternal:
		builder.WriteString("The gateway reported an internal error while running XMLSERVICE.\n")
		builder.WriteString("Check the gateway job log on the IBM i.\n")
	case GatewayErrorUnavailable:
		builder.WriteString("The toolkit gateway is currently unavailable.\n")
	case GatewayErrorTimeout:
		builder.WriteString("The toolkit gateway did not answer in time.\n")
		builder.WriteString("Long-running commands may need a larger --timeout.\n")
	case GatewayErrorAuth:
		builder.WriteString("The gateway rejected the supplied user profile or password.\n")
	default:
		builder.WriteString("The request did not reach XMLSERVICE.\n")
	}

	if strings.TrimSpace(errMsg) != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(errMsg)))
	}
	return builder.String()
}
