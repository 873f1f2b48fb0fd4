package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/interopae/travel-concierge/backend/internal/model/api"
	"github.com/interopae/travel-concierge/backend/internal/model/live"
	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

type options struct {
	baseURL        string
	userID         string
	audio          bool
	once           bool
	conversationID string
	token          string
}

func main() {
	var opts options
	flagSet := pflag.NewFlagSet("streamtester", pflag.ExitOnError)
	flagSet.StringVar(&opts.baseURL, "url", "http://localhost:8080", "server base URL")
	flagSet.StringVarP(&opts.userID, "user", "u", "tester", "user id of the live session")
	flagSet.BoolVar(&opts.audio, "audio", false, "open the stream with is_audio=true")
	flagSet.BoolVar(&opts.once, "once", false, "send each line to POST /response instead of a live session")
	flagSet.StringVar(&opts.conversationID, "conversation", "", "conversation id for --once")
	flagSet.StringVar(&opts.token, "token", "", "bearer token for --once (defaults to STREAMTESTER_TOKEN)")
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before reading the environment")
	_ = flagSet.Parse(os.Args[1:])

	_ = godotenv.Load(*envFile)
	if opts.token == "" {
		opts.token = os.Getenv("STREAMTESTER_TOKEN")
	}
	opts.baseURL = strings.TrimRight(opts.baseURL, "/")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if opts.once {
		err = runOnce(ctx, opts, os.Stdin)
	} else {
		err = runLive(ctx, opts, os.Stdin)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func runLive(ctx context.Context, opts options, input io.Reader) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	streamURL := fmt.Sprintf("%s/events/%s?is_audio=%t", opts.baseURL, url.PathEscape(opts.userID), opts.audio)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open event stream: %s", readEnvelopeMessage(resp))
	}

	yellow.Printf("connected as %s, type a message and press enter\n", opts.userID)

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var frame struct {
				live.WireMessage
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				red.Printf("\nbad frame: %s\n", data)
				continue
			}
			switch {
			case frame.Error != "":
				red.Printf("\nstream error: %s\n", frame.Error)
			case frame.IsBoundary():
				yellow.Printf("\n[turn_complete=%t interrupted=%t]\n", *frame.TurnComplete, *frame.Interrupted)
			case frame.MIMEType == live.MIMEAudioPCM:
				green.Printf("[audio %d bytes]", base64.StdEncoding.DecodedLen(len(frame.Data)))
			default:
				cyan.Print(frame.Data)
			}
		}
		yellow.Println("\nstream closed")
	}()

	lines := bufio.NewScanner(input)
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		if err := postMessage(ctx, opts, text); err != nil {
			red.Printf("send failed: %v\n", err)
		}
	}

	select {
	case <-streamDone:
	case <-ctx.Done():
	}
	return nil
}

func postMessage(ctx context.Context, opts options, text string) error {
	body, err := json.Marshal(api.StreamingMessage{Message: text, MIMEType: live.MIMETextPlain})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/response-streaming/%s", opts.baseURL, url.PathEscape(opts.userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
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
		return fmt.Errorf("%d: %s", resp.StatusCode, readEnvelopeMessage(resp))
	}
	return nil
}

func runOnce(ctx context.Context, opts options, input io.Reader) error {
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed)

	lines := bufio.NewScanner(input)
	for lines.Scan() {
		query := strings.TrimSpace(lines.Text())
		if query == "" {
			continue
		}
		reply, err := ask(ctx, opts, query)
		if err != nil {
			red.Printf("request failed: %v\n", err)
			continue
		}
		cyan.Println(reply.Response)
	}
	return lines.Err()
}

func ask(ctx context.Context, opts options, query string) (*api.Reply, error) {
	body, err := json.Marshal(api.QueryRequest{Query: query, ConversationID: opts.conversationID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/response", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", opts.userID)
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env struct {
		Data    *api.Reply `json:"data"`
		Message string     `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || env.Data == nil {
		return nil, fmt.Errorf("%d: %s", resp.StatusCode, env.Message)
	}
	return env.Data, nil
}

func readEnvelopeMessage(resp *http.Response) string {
	var env utils.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Message == "" {
		return resp.Status
	}
	return env.Message
}
