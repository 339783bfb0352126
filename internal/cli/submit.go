package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/jobpoll/internal/infra/transport"
)

var (
	submitFile      string
	submitURL       string
	submitOperation string
	submitInterval  string
	submitParams    map[string]string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a request and wait for the job to finish",
	Example: `  jobpoll submit --file meeting.mp3
  jobpoll submit --url https://example.com/talk.wav --interval 10000`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitFile, "file", "", "local media file to upload")
	submitCmd.Flags().StringVar(&submitURL, "url", "", "publicly accessible media URL")
	submitCmd.Flags().StringVar(&submitOperation, "operation", "recognizespeech", "service operation")
	submitCmd.Flags().StringVar(&submitInterval, "interval", "20000", "paragraph interval in milliseconds, -1 to disable")
	submitCmd.Flags().StringToStringVar(&submitParams, "param", nil, "extra request parameter, key=value")
	submitCmd.MarkFlagsMutuallyExclusive("file", "url")
	rootCmd.AddCommand(submitCmd)
}

func buildRequest() (transport.Request, error) {
	if submitFile == "" && submitURL == "" {
		return transport.Request{}, errors.New("one of --file or --url is required")
	}

	req := transport.Request{
		Operation: submitOperation,
		Params:    make(map[string]string, len(submitParams)+2),
		Mode:      transport.ModeAsync,
	}
	for k, v := range submitParams {
		req.Params[k] = v
	}
	if submitInterval != "" {
		req.Params["interval"] = submitInterval
	}
	if submitFile != "" {
		req.Files = map[string]string{"file": submitFile}
	} else {
		req.Params["url"] = submitURL
	}
	return req, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()
	a.startBackground(ctx)

	if err := a.orch.Submit(ctx, req); err != nil {
		return err
	}
	return a.follow(ctx, os.Stdout)
}
