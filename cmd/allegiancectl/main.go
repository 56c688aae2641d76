// Command allegiancectl is the admin CLI for a running allegianced server.
// It talks to the HTTP API with the shared admin key.
//
// Usage:
//
//	allegiancectl status
//	allegiancectl factions
//	allegiancectl create <tag> <name>
//	allegiancectl reset <tag>
//	allegiancectl resetall
//	allegiancectl speed <multiplier>
//	allegiancectl snapshot
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

func main() {
	apiURL := envOrDefault("ALLEGIANCE_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("ADMIN_KEY")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "status":
		err = get(apiURL + "/api/v1/status")
	case "factions":
		err = get(apiURL + "/api/v1/factions")
	case "faction":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: allegiancectl faction <tag>")
			break
		}
		err = get(apiURL + "/api/v1/faction/" + os.Args[2])
	case "alliances":
		err = get(apiURL + "/api/v1/alliances")
	case "events":
		err = get(apiURL + "/api/v1/events")
	case "create":
		if len(os.Args) < 4 {
			err = fmt.Errorf("usage: allegiancectl create <tag> <name>")
			break
		}
		err = post(apiURL+"/api/v1/faction", adminKey, map[string]any{
			"tag":  os.Args[2],
			"name": strings.Join(os.Args[3:], " "),
		})
	case "reset":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: allegiancectl reset <tag>")
			break
		}
		err = post(apiURL+"/api/v1/reset", adminKey, map[string]any{"tag": os.Args[2]})
	case "resetall":
		err = post(apiURL+"/api/v1/resetall", adminKey, map[string]any{})
	case "speed":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: allegiancectl speed <multiplier>")
			break
		}
		speed, convErr := strconv.ParseFloat(os.Args[2], 64)
		if convErr != nil {
			err = fmt.Errorf("invalid speed %q", os.Args[2])
			break
		}
		err = post(apiURL+"/api/v1/speed", adminKey, map[string]any{"speed": speed})
	case "snapshot":
		err = post(apiURL+"/api/v1/snapshot", adminKey, map[string]any{})
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: allegiancectl <status|factions|faction|alliances|events|create|reset|resetall|speed|snapshot> [args]")
	fmt.Fprintln(os.Stderr, "environment: ALLEGIANCE_API_URL (default http://localhost:8080), ADMIN_KEY (for admin commands)")
}

func get(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func post(url, adminKey string, payload map[string]any) error {
	if adminKey == "" {
		return fmt.Errorf("ADMIN_KEY is required for admin commands")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+adminKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// printResponse pretty-prints a JSON response body, or dumps it raw if it
// is not JSON (error messages from http.Error are plain text).
func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(strings.TrimSpace(string(body)))
	}
	return nil
}
