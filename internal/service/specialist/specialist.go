package specialist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/interopae/travel-concierge/backend/internal/model/profile"
)

// ErrUnavailable is returned by backends that cannot take requests.
var ErrUnavailable = errors.New("specialist is unavailable")

// Backend answers requests handed to one specialist. What happens behind it
// is opaque to the agent.
type Backend interface {
	Ask(ctx context.Context, request string) (string, error)
}

// Request is the argument the model passes when delegating.
type Request struct {
	Request string `json:"request"`
}

// Reply is what the model reads back from a specialist.
type Reply struct {
	Specialist  string `json:"specialist"`
	Response    string `json:"response"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// Unavailable is the backend for specialists without an endpoint.
type Unavailable struct {
	Name string
}

func (u Unavailable) Ask(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %s has no endpoint", ErrUnavailable, u.Name)
}

type askResponse struct {
	Response string `json:"response"`
}

// Client forwards requests to a specialist served over HTTP. The endpoint
// takes {"request": "..."} and answers with {"response": "..."} or plain text.
type Client struct {
	name     string
	endpoint string
	http     *resty.Client
}

func NewClient(name, endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:     name,
		endpoint: endpoint,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Ask(ctx context.Context, request string) (string, error) {
	var out askResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(Request{Request: request}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", c.name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: %s returned %s", ErrUnavailable, c.name, resp.Status())
	}

	if text := strings.TrimSpace(out.Response); text != "" {
		return text, nil
	}
	return strings.TrimSpace(resp.String()), nil
}

// NewBackend returns an HTTP client for sub, or Unavailable when sub has no
// endpoint.
func NewBackend(sub profile.SubAgent, timeout time.Duration) Backend {
	if strings.TrimSpace(sub.Endpoint) == "" {
		return Unavailable{Name: sub.Name}
	}
	return NewClient(sub.Name, sub.Endpoint, timeout)
}

// NewTool exposes backend as a tool named after sub. Backend failures are
// reported to the model as an unavailable reply so the turn can go on.
func NewTool(sub profile.SubAgent, backend Backend) tool.InvokableTool {
	desc := strings.TrimSpace(sub.Description)
	if sub.Instruction != "" {
		desc += " " + strings.TrimSpace(sub.Instruction)
	}

	info := &schema.ToolInfo{
		Name: sub.Name,
		Desc: desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"request": {
				Type:     schema.String,
				Desc:     "What the traveller needs from this specialist, with every detail they gave.",
				Required: true,
			},
		}),
	}

	return utils.NewTool(info, func(ctx context.Context, in Request) (Reply, error) {
		reply := Reply{Specialist: sub.Name}
		request := strings.TrimSpace(in.Request)
		if request == "" {
			reply.Response = "No request was given."
			return reply, nil
		}

		log.Printf("[specialist] %s <- %s", sub.Name, request)
		answer, err := backend.Ask(ctx, request)
		if err != nil {
			log.Printf("[specialist] %s failed: %v", sub.Name, err)
			reply.Unavailable = true
			reply.Response = fmt.Sprintf("The %s service is currently unavailable.", sub.Name)
			return reply, nil
		}
		reply.Response = answer
		return reply, nil
	})
}

// Tools builds one tool per sub-agent.
func Tools(subs []profile.SubAgent, timeout time.Duration) []tool.BaseTool {
	tools := make([]tool.BaseTool, 0, len(subs))
	for _, sub := range subs {
		tools = append(tools, NewTool(sub, NewBackend(sub, timeout)))
	}
	return tools
}
