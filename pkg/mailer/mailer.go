package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/credentials"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mailer", fx.Provide(ProvideMailer))

const (
	ProviderResend = "resend"
	ProviderGraph  = "graph"
	ProviderLog    = "log"

	resendBaseURL = "https://api.resend.com"
	graphBaseURL  = "https://graph.microsoft.com/v1.0"
)

var ErrRejected = errors.New("mailer: message rejected")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

func ProvideMailer(cfg *config.Config) (Mailer, error) {
	m := cfg.Mail
	switch m.Provider {
	case ProviderResend:
		return NewResend(resendBaseURL, m.From, credentials.Static(m.ResendAPIKey)), nil
	case ProviderGraph:
		src := credentials.NewMicrosoftGraph(m.GraphTenantID, m.GraphClientID, m.GraphClientSecret)
		return NewGraph(graphBaseURL, m.From, src), nil
	case ProviderLog, "":
		return Log{}, nil
	default:
		return nil, fmt.Errorf("mailer: unknown provider %q", m.Provider)
	}
}

// tokenHolder keeps the credential of one mailer instance.
type tokenHolder struct {
	src credentials.Source
	now func() time.Time

	mu   sync.Mutex
	cred credentials.Credential
}

func (h *tokenHolder) token(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cred.Expired(h.now()) {
		return h.cred.Token, nil
	}

	cred, err := h.src.Resolve(ctx)
	if err != nil {
		return "", err
	}
	h.cred = cred
	return cred.Token, nil
}

// reset drops the credential after the provider refused it.
func (h *tokenHolder) reset() {
	h.mu.Lock()
	h.cred = credentials.Credential{}
	h.mu.Unlock()
}

func post(ctx context.Context, client *resty.Client, h *tokenHolder, path string, body any) error {
	tok, err := h.token(ctx)
	if err != nil {
		return fmt.Errorf("mailer: resolve credentials: %w", err)
	}

	resp, err := client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		h.reset()
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode(), resp.String())
	}
	return nil
}

// Resend sends through the Resend HTTP API.
type Resend struct {
	from   string
	client *resty.Client
	holder *tokenHolder
}

func NewResend(baseURL, from string, src credentials.Source) *Resend {
	return &Resend{
		from:   from,
		client: resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		holder: &tokenHolder{src: src, now: time.Now},
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (r *Resend) Send(ctx context.Context, msg Message) error {
	return post(ctx, r.client, r.holder, "/emails", resendEmail{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
}

// Graph sends through Microsoft Graph as the configured mailbox.
type Graph struct {
	from   string
	client *resty.Client
	holder *tokenHolder
}

func NewGraph(baseURL, from string, src credentials.Source) *Graph {
	return &Graph{
		from:   from,
		client: resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		holder: &tokenHolder{src: src, now: time.Now},
	}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	Subject      string         `json:"subject"`
	Body         graphBody      `json:"body"`
	ToRecipients []graphAddress `json:"toRecipients"`
}

type graphSendMail struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func (g *Graph) Send(ctx context.Context, msg Message) error {
	body := graphBody{ContentType: "Text", Content: msg.Text}
	if msg.HTML != "" {
		body = graphBody{ContentType: "HTML", Content: msg.HTML}
	}

	var to graphAddress
	to.EmailAddress.Address = msg.To

	return post(ctx, g.client, g.holder, fmt.Sprintf("/users/%s/sendMail", g.from), graphSendMail{
		Message: graphMessage{
			Subject:      msg.Subject,
			Body:         body,
			ToRecipients: []graphAddress{to},
		},
	})
}

// Log writes messages to the logger instead of delivering them.
type Log struct{}

func (Log) Send(ctx context.Context, msg Message) error {
	zap.L().Info("mail not delivered (log provider)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
