package e2e

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

// RegisterSteps wires all step definitions for the submission features.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})

	ctx.Step(`^a published campaign with a (\d+) second enrollment window$`, tc.publishedCampaign)
	ctx.Step(`^a published campaign with a (\d+) second enrollment window and minimum age (\d+)$`, tc.publishedCampaignWithMinAge)
	ctx.Step(`^I am an authenticated participant$`, tc.authenticatedParticipant)
	ctx.Step(`^I enroll with age (\d+)$`, tc.enrollWithAge)
	ctx.Step(`^I submit the payload "([^"]*)"$`, tc.submitPayload)
	ctx.Step(`^I revoke my consent$`, tc.revokeConsent)
	ctx.Step(`^I wait (\d+) seconds$`, tc.waitSeconds)
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response error should be "([^"]*)"$`, tc.responseErrorShouldBe)
}

func (tc *TestContext) publishedCampaign(seconds int) error {
	return tc.createAndPublish(seconds, 0)
}

func (tc *TestContext) publishedCampaignWithMinAge(seconds, minAge int) error {
	return tc.createAndPublish(seconds, minAge)
}

// createAndPublish provisions a campaign whose enrollment window opens now
// and closes after the given number of seconds, with collection open for an
// hour beyond that. Scenarios step across phase boundaries by waiting.
func (tc *TestContext) createAndPublish(enrollmentSeconds, minAge int) error {
	researcherToken, err := tc.IssueToken()
	if err != nil {
		return err
	}
	tc.researcherToken = researcherToken

	ownerKey := make([]byte, 32)
	if _, err := rand.Read(ownerKey); err != nil {
		return err
	}
	tc.ownerPublicKey = base64.StdEncoding.EncodeToString(ownerKey)

	now := time.Now().UTC()
	body := map[string]any{
		"owner_public_key": tc.ownerPublicKey,
		"enrollment_start": now.Add(-time.Second),
		"enrollment_end":   now.Add(time.Duration(enrollmentSeconds) * time.Second),
		"collection_end":   now.Add(time.Duration(enrollmentSeconds)*time.Second + time.Hour),
		"max_participants": 100,
	}
	if minAge > 0 {
		body["rules"] = map[string]any{"min_age": minAge}
	}

	if err := tc.Do(http.MethodPost, "/campaigns", tc.researcherToken, body); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusCreated {
		return fmt.Errorf("create campaign returned %d, body %v", tc.lastStatus, tc.lastBody)
	}
	id, ok := tc.ResponseField("campaign_id")
	if !ok {
		return fmt.Errorf("create campaign response has no campaign_id")
	}
	tc.campaignID = id.(string)

	if err := tc.Do(http.MethodPost, "/campaigns/"+tc.campaignID+"/publish", tc.researcherToken, nil); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusNoContent {
		return fmt.Errorf("publish campaign returned %d, body %v", tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) authenticatedParticipant() error {
	token, err := tc.IssueToken()
	if err != nil {
		return err
	}
	tc.participantToken = token
	return nil
}

func (tc *TestContext) enrollWithAge(age int) error {
	return tc.Do(http.MethodPost, "/campaigns/"+tc.campaignID+"/enrollments", tc.participantToken,
		map[string]any{"attributes": map[string]any{"age": age}})
}

func (tc *TestContext) submitPayload(payload string) error {
	return tc.Do(http.MethodPost, "/campaigns/"+tc.campaignID+"/submissions", tc.participantToken,
		map[string]any{"payload": base64.StdEncoding.EncodeToString([]byte(payload))})
}

func (tc *TestContext) revokeConsent() error {
	return tc.Do(http.MethodPost, "/campaigns/"+tc.campaignID+"/consent/revoke", tc.participantToken, nil)
}

func (tc *TestContext) waitSeconds(seconds int) error {
	time.Sleep(time.Duration(seconds) * time.Second)
	return nil
}

func (tc *TestContext) responseStatusShouldBe(status int) error {
	if tc.lastStatus != status {
		return fmt.Errorf("expected status %d, got %d (body %v)", status, tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) responseShouldContain(field string) error {
	if _, ok := tc.ResponseField(field); !ok {
		return fmt.Errorf("response has no field %q: %v", field, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) responseErrorShouldBe(code string) error {
	v, ok := tc.ResponseField("error")
	if !ok {
		return fmt.Errorf("response has no error field: %v", tc.lastBody)
	}
	if v != code {
		return fmt.Errorf("expected error %q, got %q", code, v)
	}
	return nil
}
