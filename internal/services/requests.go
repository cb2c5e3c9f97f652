package services

import (
	"time"

	"go.uber.org/zap"

	"dirstat/internal/exclude"
)

const DefaultProgressInterval = 100 * time.Millisecond

type TreeOptions struct {
	// Rules are cloned at the start of every scan.
	Rules *exclude.Rules
	// ProgressInterval throttles progress events; zero reports every
	// directory.
	ProgressInterval time.Duration
	Logger           *zap.Logger
}
