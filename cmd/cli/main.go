package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("ADMIN_API_KEY")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		color.Red("Invalid URL.")
		return
	}

	body, _ := json.Marshal(map[string]string{"url": raw})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/monitors", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		color.Red("Error contacting API: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		color.Red("API returned status: %s", resp.Status)
		return
	}

	var added struct {
		Monitor struct {
			ID string `json:"id"`
		} `json:"monitor"`
		Result struct {
			Outcome *struct {
				Status string `json:"status"`
			} `json:"outcome"`
		} `json:"result"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&added)
	status := "UNKNOWN"
	if added.Result.Outcome != nil {
		status = added.Result.Outcome.Status
	}
	color.Green("Added %s (%s). First check: %s", raw, added.Monitor.ID, status)
	fmt.Println("See GET /api/monitors/" + added.Monitor.ID + "/status")
}
