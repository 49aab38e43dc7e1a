package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (interface{}, error)
	Handle(name string) string
	Tag(name string) string
}

// RegisterSteps registers node lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &nodeSteps{tc: tc}

	ctx.Step(`^node "([^"]*)" is registered with tags "([^"]*)"$`, steps.nodeIsRegistered)
	ctx.Step(`^I register node "([^"]*)" with tags "([^"]*)"$`, steps.registerNode)
	ctx.Step(`^I register node "([^"]*)" with endpoint "([^"]*)"$`, steps.registerWithEndpoint)
	ctx.Step(`^node "([^"]*)" sends a heartbeat with tags "([^"]*)"$`, steps.sendHeartbeat)
	ctx.Step(`^I look up node "([^"]*)"$`, steps.lookUpNode)

	ctx.Step(`^the response handle should be "([^"]*)"$`, steps.handleShouldBe)
	ctx.Step(`^the response tags should be "([^"]*)"$`, steps.tagsShouldBe)
}

type nodeSteps struct {
	tc TestContext
}

func (s *nodeSteps) endpointFor(handle string) string {
	return "https://" + handle + ".nodes.example.com"
}

func (s *nodeSteps) tags(csv string) []string {
	out := []string{}
	for _, t := range strings.Split(csv, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, s.tc.Tag(t))
		}
	}
	return out
}

func (s *nodeSteps) nodeIsRegistered(ctx context.Context, name, tags string) error {
	if err := s.registerNode(ctx, name, tags); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 201 {
		return fmt.Errorf("registration failed with %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *nodeSteps) registerNode(ctx context.Context, name, tags string) error {
	handle := s.tc.Handle(name)
	return s.tc.POST("/register", map[string]interface{}{
		"handle":   "@" + handle,
		"endpoint": s.endpointFor(handle),
		"tags":     s.tags(tags),
	})
}

func (s *nodeSteps) registerWithEndpoint(ctx context.Context, name, endpoint string) error {
	return s.tc.POST("/register", map[string]interface{}{
		"handle":   "@" + s.tc.Handle(name),
		"endpoint": endpoint,
		"tags":     []string{},
	})
}

func (s *nodeSteps) sendHeartbeat(ctx context.Context, name, tags string) error {
	handle := s.tc.Handle(name)
	return s.tc.POST("/heartbeat", map[string]interface{}{
		"handle":   "@" + handle,
		"endpoint": s.endpointFor(handle),
		"tags":     s.tags(tags),
	})
}

func (s *nodeSteps) lookUpNode(ctx context.Context, name string) error {
	return s.tc.GET("/node/@" + s.tc.Handle(name))
}

func (s *nodeSteps) handleShouldBe(ctx context.Context, name string) error {
	v, err := s.tc.GetResponseField("handle")
	if err != nil {
		return err
	}
	if expected := "@" + s.tc.Handle(name); v != expected {
		return fmt.Errorf("expected handle %s, got %v", expected, v)
	}
	return nil
}

func (s *nodeSteps) tagsShouldBe(ctx context.Context, csv string) error {
	v, err := s.tc.GetResponseField("tags")
	if err != nil {
		return err
	}
	raw, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("tags is not a list: %v", v)
	}
	expected := s.tags(csv)
	if len(raw) != len(expected) {
		return fmt.Errorf("expected tags %v, got %v", expected, raw)
	}
	for i := range expected {
		if raw[i] != expected[i] {
			return fmt.Errorf("expected tags %v, got %v", expected, raw)
		}
	}
	return nil
}
