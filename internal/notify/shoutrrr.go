package notify

import (
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/kamiai/kamiai/internal/errors"
)

// ShoutrrrProvider sends through one shoutrrr router built from all URLs.
type ShoutrrrProvider struct {
	name    string
	urls    []string
	types   map[Type]bool
	timeout time.Duration
	sender  *router.ServiceRouter
}

// NewShoutrrrProvider returns a provider for urls. An empty types list
// accepts every type. ValidateConfig must succeed before Send.
func NewShoutrrrProvider(name string, urls []string, types []string, timeout time.Duration) *ShoutrrrProvider {
	p := &ShoutrrrProvider{
		name:    strings.TrimSpace(name),
		urls:    slices.Clone(urls),
		types:   map[Type]bool{},
		timeout: timeout,
	}
	if p.name == "" {
		p.name = "shoutrrr"
	}
	if len(types) == 0 {
		types = []string{string(TypeInfo), string(TypeWarning), string(TypeError)}
	}
	for _, t := range types {
		p.types[Type(t)] = true
	}
	return p
}

func (p *ShoutrrrProvider) Name() string              { return p.name }
func (p *ShoutrrrProvider) SupportsType(t Type) bool { return p.types[t] }

// ValidateConfig parses the URLs and builds the sender.
func (p *ShoutrrrProvider) ValidateConfig() error {
	if len(p.urls) == 0 {
		return providerError("at least one URL is required", nil)
	}
	sender, err := shoutrrr.CreateSender(p.urls...)
	if err != nil {
		return providerError("invalid notification URL", p.redact(err))
	}
	if p.timeout > 0 {
		sender.Timeout = p.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	p.sender = sender
	return nil
}

// Send delivers n to every URL. The router applies its own timeout.
func (p *ShoutrrrProvider) Send(_ context.Context, n *Notification) error {
	if p.sender == nil {
		return providerError("shoutrrr sender not initialized", nil)
	}
	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	for _, err := range p.sender.Send(n.Message, &params) {
		if err != nil {
			return providerError("send failed", p.redact(err))
		}
	}
	return nil
}

// redact replaces configured URLs in err, they usually carry tokens.
func (p *ShoutrrrProvider) redact(err error) error {
	msg := err.Error()
	for _, u := range p.urls {
		scheme, _, _ := strings.Cut(u, "://")
		msg = strings.ReplaceAll(msg, u, scheme+"://***")
	}
	return errors.NewStd(msg)
}

func providerError(message string, err error) error {
	var b *errors.ErrorBuilder
	if err != nil {
		b = errors.New(err).Context("reason", message)
	} else {
		b = errors.Newf("%s", message)
	}
	return b.Component("notify").
		Category(errors.CategoryIntegration).
		Build()
}
