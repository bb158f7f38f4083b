// Command chat is a terminal client for the AskCampus API. It reads
// questions from stdin, streams answer tokens over SSE, and prints the
// confidence and sources when the answer completes.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/AskCampusAI/askcampus-mvp/engine/rag"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	apiURL := envOr("ASKCAMPUS_API", "http://localhost:8080")
	userID := envOr("ASKCAMPUS_USER", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("AskCampus chat. Type a question, or \"exit\" to quit.")

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		question := strings.TrimSpace(in.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		if err := ask(ctx, apiURL, userID, question); err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	fmt.Println()
}

func ask(ctx context.Context, apiURL, userID, question string) error {
	body, err := json.Marshal(map[string]string{"question": question, "user_id": userID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := bufio.NewReader(resp.Body).ReadString('\n')
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(msg))
	}

	var event string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "token":
				var tok struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal([]byte(data), &tok); err == nil {
					fmt.Print(tok.Token)
				}
			case "error":
				var e struct {
					Error string `json:"error"`
				}
				if err := json.Unmarshal([]byte(data), &e); err == nil && e.Error != "" {
					return fmt.Errorf("%s", e.Error)
				}
				return fmt.Errorf("stream failed")
			case "done":
				var r rag.Response
				if err := json.Unmarshal([]byte(data), &r); err == nil {
					printSummary(r)
				}
				return sc.Err()
			}
		}
	}
	return sc.Err()
}

func printSummary(r rag.Response) {
	fmt.Printf("\n\n[%s confidence, %d%%", r.Confidence.Level, r.Confidence.Score)
	if r.Cached {
		fmt.Printf(", cached %.0f%% match", r.CacheSimilarity*100)
	}
	fmt.Println("]")

	for _, s := range r.Sources {
		fmt.Printf("  source: %s (%d%% match)\n", s.DocumentName, s.Similarity)
	}
	if r.Deadline != nil {
		fmt.Printf("  deadline: %s on %s\n", r.Deadline.Title, r.Deadline.Date)
	}
}
