package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/flowtrack/flowgate/pkg/identity"
)

// Verdict is the gate's answer for a prospective navigation.
type Verdict struct {
	Path               string `json:"path"`
	Class              string `json:"class"`
	Authenticated      bool   `json:"authenticated"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	Verdict            string `json:"verdict"`
	Reason             string `json:"reason"`
	Location           string `json:"location,omitempty"`
}

type accessResponse struct {
	Page  string          `json:"page"`
	Roles []identity.Role `json:"roles"`
}

// ErrGateUnavailable is returned when the gate answers with a non-200 status.
var ErrGateUnavailable = errors.New("gate request failed")

// Verdict asks the gate how it would handle a navigation to path.
func (p *Provider) Verdict(ctx context.Context, path string) (*Verdict, error) {
	var v Verdict
	if err := p.getJSON(ctx, "/_gate/verdict", url.Values{"path": {path}}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// PermittedRoles fetches the roles allowed to view page.
func (p *Provider) PermittedRoles(ctx context.Context, page string) ([]identity.Role, error) {
	var resp accessResponse
	if err := p.getJSON(ctx, "/_gate/access", url.Values{"page": {page}}, &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	cli, err := p.HTTPClient(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("%w: %s: %s (%d)", ErrGateUnavailable, endpoint, body.Error, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s returned %d", ErrGateUnavailable, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
