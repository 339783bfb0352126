package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/transport"
	"github.com/vietddude/jobpoll/internal/orchestrator"
)

// Minimal library usage: submit one media URL and print the transcript.
// The full client lives in cmd/jobpoll.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	API_KEY := os.Getenv("HOD_API_KEY")
	MEDIA_URL := os.Getenv("MEDIA_URL")
	if API_KEY == "" {
		log.Fatalf("HOD_API_KEY is not set")
	}
	if MEDIA_URL == "" {
		log.Fatalf("MEDIA_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// 1. Create transport and orchestrator
	tr := transport.NewHTTPTransport(transport.Config{
		BaseURL: "https://api.havenondemand.com",
		APIKey:  API_KEY,
	})
	orch, err := orchestrator.New(orchestrator.Config{Transport: tr})
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// 2. Submit the request
	err = orch.Submit(ctx, transport.Request{
		Operation: "recognizespeech",
		Params:    map[string]string{"url": MEDIA_URL, "interval": "20000"},
	})
	if err != nil {
		log.Fatalf("Submit failed: %v", err)
	}

	// 3. Follow the job
	for ev := range orch.Events() {
		switch ev.Kind {
		case orchestrator.EventProgress:
			fmt.Println(ev.Message)
		case orchestrator.EventTerminal:
			res := ev.Outcome.Result.(domain.RecognizeSpeechResult)
			for _, doc := range res.Document {
				fmt.Printf("Paragraph: %s\nOffset: %d\n", doc.Content, doc.Offset)
			}
			return
		default:
			log.Fatalf("%s: %s %s", ev.Kind, ev.Message, ev.Raw)
		}
	}
}
