package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Handle(name string) string
	Tag(name string) string
}

// RegisterSteps registers discovery step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &searchSteps{tc: tc}

	ctx.Step(`^I search for tags "([^"]*)"$`, steps.searchTags)
	ctx.Step(`^I search for tags "([^"]*)" and text "([^"]*)"$`, steps.searchTagsAndText)
	ctx.Step(`^I search (\d+) times for tags "([^"]*)"$`, steps.searchNTimes)

	ctx.Step(`^the results should be "([^"]*)" in that order$`, steps.resultsInOrder)
	ctx.Step(`^the results should be empty$`, steps.resultsEmpty)
	ctx.Step(`^no result should expose an endpoint$`, steps.noEndpoints)
}

type searchSteps struct {
	tc TestContext
}

type searchResponse struct {
	Items []struct {
		Handle   string `json:"handle"`
		Endpoint string `json:"endpoint"`
	} `json:"items"`
	Degraded bool   `json:"degraded"`
	Tier     string `json:"tier"`
}

func (s *searchSteps) path(tags, text string) string {
	q := url.Values{}
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			q.Add("tag", s.tc.Tag(t))
		}
	}
	if text != "" {
		q.Set("q", text)
	}
	return "/search?" + q.Encode()
}

func (s *searchSteps) searchTags(ctx context.Context, tags string) error {
	return s.tc.GET(s.path(tags, ""))
}

func (s *searchSteps) searchTagsAndText(ctx context.Context, tags, text string) error {
	return s.tc.GET(s.path(tags, text))
}

func (s *searchSteps) searchNTimes(ctx context.Context, n int, tags string) error {
	for i := 0; i < n; i++ {
		if err := s.searchTags(ctx, tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *searchSteps) response() (searchResponse, error) {
	var resp searchResponse
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return resp, fmt.Errorf("search failed with %d: %s", status, s.tc.GetLastResponseBody())
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &resp); err != nil {
		return resp, fmt.Errorf("decode search response: %w", err)
	}
	return resp, nil
}

func (s *searchSteps) resultsInOrder(ctx context.Context, csv string) error {
	resp, err := s.response()
	if err != nil {
		return err
	}
	var expected, got []string
	for _, name := range strings.Split(csv, ",") {
		expected = append(expected, "@"+s.tc.Handle(strings.TrimSpace(name)))
	}
	for _, item := range resp.Items {
		got = append(got, item.Handle)
	}
	if strings.Join(expected, ",") != strings.Join(got, ",") {
		return fmt.Errorf("expected results %v, got %v", expected, got)
	}
	return nil
}

func (s *searchSteps) resultsEmpty(ctx context.Context) error {
	resp, err := s.response()
	if err != nil {
		return err
	}
	if len(resp.Items) != 0 {
		return fmt.Errorf("expected no results, got %d", len(resp.Items))
	}
	return nil
}

func (s *searchSteps) noEndpoints(ctx context.Context) error {
	resp, err := s.response()
	if err != nil {
		return err
	}
	for _, item := range resp.Items {
		if item.Endpoint != "" {
			return fmt.Errorf("%s exposes endpoint %s", item.Handle, item.Endpoint)
		}
	}
	return nil
}
