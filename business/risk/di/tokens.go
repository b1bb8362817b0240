// Package di contains dependency injection tokens for the risk context.
package di

import (
	riskapp "github.com/fd1az/arbitrage-bot/business/risk/app"
	"github.com/fd1az/arbitrage-bot/internal/di"
)

// DI tokens for the risk module.
const (
	RiskGate = "risk.RiskGate"
)

// GetRiskGate resolves the shared RiskGate from the container.
func GetRiskGate(sr di.ServiceRegistry) *riskapp.RiskGate {
	return di.GetToken[*riskapp.RiskGate](sr, RiskGate)
}
