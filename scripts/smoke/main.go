// Command smoke runs a sequential end-to-end check against a running
// transfer-api instance: health, login, create a transfer, advance its
// status and read the ledger back. Exit code 1 when any critical step
// fails.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

type step struct {
	Name     string
	Critical bool
	Run      func(c *client) error
}

type client struct {
	base  string
	http  *http.Client
	token string
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	base := flag.String("base", "http://localhost:8080", "base URL of the API under test")
	email := flag.String("email", "", "login email for the workflow steps")
	password := flag.String("password", "", "login password")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	c := &client{base: *base, http: &http.Client{Timeout: *timeout}}

	steps := []step{
		{Name: "health", Critical: true, Run: checkHealth},
		{Name: "ready", Critical: true, Run: checkReady},
	}
	if *email != "" && *password != "" {
		steps = append(steps,
			step{Name: "login", Critical: true, Run: login(*email, *password)},
			step{Name: "workflow", Critical: false, Run: runWorkflow},
		)
	}

	failed := 0
	for _, s := range steps {
		start := time.Now()
		err := s.Run(c)
		if err != nil {
			fmt.Printf("FAIL  %-10s %v (%s)\n", s.Name, err, time.Since(start).Round(time.Millisecond))
			if s.Critical {
				os.Exit(1)
			}
			failed++
			continue
		}
		fmt.Printf("OK    %-10s (%s)\n", s.Name, time.Since(start).Round(time.Millisecond))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func checkHealth(c *client) error {
	return c.expectStatus(http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func checkReady(c *client) error {
	return c.expectStatus(http.MethodGet, "/ready", nil, http.StatusOK, nil)
}

func login(email, password string) func(c *client) error {
	return func(c *client) error {
		var out struct {
			AccessToken string `json:"access_token"`
		}
		payload := map[string]string{"email": email, "password": password}
		if err := c.expectStatus(http.MethodPost, "/api/v1/auth/login", payload, http.StatusOK, &out); err != nil {
			return err
		}
		if out.AccessToken == "" {
			return fmt.Errorf("login returned no access token")
		}
		c.token = out.AccessToken
		return nil
	}
}

func runWorkflow(c *client) error {
	var created struct {
		ID string `json:"id"`
	}
	payload := map[string]interface{}{
		"customer_name":       "Smoke Test",
		"phone_model":         "Test Phone",
		"imei":                fmt.Sprintf("%015d", time.Now().UnixNano()%1e15),
		"problem_description": "smoke check",
		"staff_receive_name":  "Smoke",
		"date_from_branch":    time.Now().Format("2006-01-02"),
	}
	if err := c.expectStatus(http.MethodPost, "/api/v1/transfers", payload, http.StatusCreated, &created); err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}

	var history []json.RawMessage
	if err := c.expectStatus(http.MethodGet, "/api/v1/transfers/"+created.ID+"/history", nil, http.StatusOK, &history); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(history) == 0 {
		return fmt.Errorf("history is empty after creation")
	}
	return nil
}

func (c *client) expectStatus(method, path string, payload interface{}, want int, out interface{}) error {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	var env envelope
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&env); err != nil && resp.StatusCode == want {
		// Non-envelope endpoints (health, ready) are fine.
		return nil
	}
	if resp.StatusCode != want {
		if env.Error != nil {
			return fmt.Errorf("got %d (%s: %s), want %d", resp.StatusCode, env.Error.Code, env.Error.Message, want)
		}
		return fmt.Errorf("got %d, want %d", resp.StatusCode, want)
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
