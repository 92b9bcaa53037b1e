package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "business-directory/internal/common/http"
)

type CRMClient struct {
	oauthToken string
	baseURL    string
	httpClient *httpclient.Client
}

// Lead mirrors the subset of the Zoho Leads module we write.
type Lead struct {
	ID          string `json:"id,omitempty"`
	LastName    string `json:"Last_Name"`
	FirstName   string `json:"First_Name,omitempty"`
	Email       string `json:"Email"`
	Phone       string `json:"Phone,omitempty"`
	Company     string `json:"Company"`
	Source      string `json:"Lead_Source,omitempty"`
	Description string `json:"Description,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(baseURL, oauthToken string) *CRMClient {
	if baseURL == "" {
		baseURL = "https://www.zohoapis.com/crm/v3"
	}
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpclient.NewClient(30 * time.Second),
	}
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

func (c *CRMClient) CreateLead(ctx context.Context, lead *Lead) (string, error) {
	payload := map[string]interface{}{"data": []Lead{*lead}}

	var resp upsertResponse
	if err := c.httpClient.DoJSON(ctx, http.MethodPost, c.baseURL+"/Leads", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("create lead: %w", err)
	}

	if len(resp.Data) == 0 {
		return "", fmt.Errorf("create lead: no data in response")
	}
	if resp.Data[0].Status != "success" {
		return "", fmt.Errorf("create lead: %s", resp.Data[0].Message)
	}
	return resp.Data[0].Details.ID, nil
}

func (c *CRMClient) SearchLeads(ctx context.Context, email string) ([]Lead, error) {
	endpoint := fmt.Sprintf("%s/Leads/search?email=%s", c.baseURL, url.QueryEscape(email))

	var result struct {
		Data []Lead `json:"data"`
	}
	if err := c.httpClient.DoJSON(ctx, http.MethodGet, endpoint, c.headers(), nil, &result); err != nil {
		return nil, fmt.Errorf("search leads: %w", err)
	}
	return result.Data, nil
}
