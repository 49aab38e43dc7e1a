package e2e

import (
	"github.com/cucumber/godog"

	"beacon/e2e/steps/common"
	"beacon/e2e/steps/node"
	"beacon/e2e/steps/search"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic requests and response assertions
	common.RegisterSteps(ctx, tc)

	// Register, heartbeat and lookup
	node.RegisterSteps(ctx, tc)

	// Search and quota
	search.RegisterSteps(ctx, tc)
}
