package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(callServer(http.MethodGet, *baseURL, "/admin/v1/games", "", 5*time.Second))
}

// snapshotCmd asks a running game for an immediate snapshot.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	code := fs.String("code", "", "game join code")
	token := fs.String("token", "", "host token")
	_ = fs.Parse(args)

	if strings.TrimSpace(*code) == "" || strings.TrimSpace(*token) == "" {
		fmt.Fprintln(os.Stderr, "missing -code or -token")
		os.Exit(2)
	}
	os.Exit(callServer(http.MethodPost, *baseURL, "/v1/games/"+url.PathEscape(*code)+"/snapshot", *token, 10*time.Second))
}

// callServer prints the response body and returns the process exit code.
func callServer(method, baseURL, path, hostToken string, timeout time.Duration) int {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 2
	}
	if hostToken != "" {
		req.Header.Set("X-Host-Token", hostToken)
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
