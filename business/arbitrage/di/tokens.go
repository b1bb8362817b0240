// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	arbitrageapp "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	"github.com/fd1az/arbitrage-bot/internal/di"
)

// DI tokens for the arbitrage module.
const (
	Detector   = "arbitrage.Detector"
	Executor   = "arbitrage.Executor"
	Controller = "arbitrage.Controller"
	Reporter   = "arbitrage.Reporter"
	EventLog   = "arbitrage.EventLog"
)

// GetDetector resolves the shared Detector from the container.
func GetDetector(sr di.ServiceRegistry) *arbitrageapp.Detector {
	return di.GetToken[*arbitrageapp.Detector](sr, Detector)
}

// GetExecutor resolves the shared Executor from the container.
func GetExecutor(sr di.ServiceRegistry) *arbitrageapp.Executor {
	return di.GetToken[*arbitrageapp.Executor](sr, Executor)
}

// GetController resolves the shared Controller from the container.
func GetController(sr di.ServiceRegistry) *arbitrageapp.Controller {
	return di.GetToken[*arbitrageapp.Controller](sr, Controller)
}

// GetReporter resolves the shared Reporter from the container.
func GetReporter(sr di.ServiceRegistry) arbitrageapp.Reporter {
	return di.GetToken[arbitrageapp.Reporter](sr, Reporter)
}

// GetEventLog resolves the shared EventLog from the container.
func GetEventLog(sr di.ServiceRegistry) arbitrageapp.EventLog {
	return di.GetToken[arbitrageapp.EventLog](sr, EventLog)
}
