package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

const loadCodeAssistURL = "https://cloudcode-pa.googleapis.com/v1internal:loadCodeAssist"

// DiscoverProject calls the Cloud Code loadCodeAssist endpoint to resolve the
// GCP project id backing an account's access token, falling back to an
// env-configured default when the response carries none.
func DiscoverProject(ctx context.Context, client *http.Client, accessToken string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"metadata": map[string]string{"ideType": "ANTIGRAVITY"},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loadCodeAssistURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("loadCodeAssist failed with status %d", resp.StatusCode)
	}

	var result struct {
		CloudAICompanionProject string `json:"cloudaicompanionProject"`
		Config                  struct {
			ProjectID string `json:"projectId"`
		} `json:"codeAssistConfig"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if result.Config.ProjectID != "" {
			return result.Config.ProjectID, nil
		}
		if result.CloudAICompanionProject != "" {
			return result.CloudAICompanionProject, nil
		}
	}

	if def := defaultProjectID(); def != "" {
		return def, nil
	}
	return "", fmt.Errorf("loadCodeAssist returned no project id")
}

func defaultProjectID() string {
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("DEFAULT_PROJECT_ID")
}
