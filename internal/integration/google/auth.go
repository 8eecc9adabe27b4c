package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/placementalarm/placement-api/config"
)

// Credential kinds. Calendar covers calendar sync and drive import,
// parsing covers the dedicated inbox-scanning account.
const (
	KindCalendar = "calendar"
	KindParsing  = "parsing"
)

// ExchangeResult is what linking a Google account yields: a long-lived
// refresh token and, for parsing accounts, the mailbox address.
type ExchangeResult struct {
	RefreshToken string
	Email        string
}

// OAuthClient exchanges authorization codes and mints token sources for
// stored refresh tokens.
type OAuthClient interface {
	ConsentURL(kind, state string) string
	Exchange(ctx context.Context, code, kind string) (*ExchangeResult, error)
	TokenSource(ctx context.Context, refreshToken, kind string) oauth2.TokenSource
}

type oauthClient struct {
	cfg config.GoogleConfig
}

func NewOAuthClient(cfg config.GoogleConfig) OAuthClient {
	return &oauthClient{cfg: cfg}
}

func (c *oauthClient) oauthConfig(kind string) *oauth2.Config {
	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
	}
	switch kind {
	case KindParsing:
		conf.RedirectURL = c.cfg.ParsingRedirectURI
		conf.Scopes = []string{gmail.GmailModifyScope}
	default:
		conf.RedirectURL = c.cfg.CalendarRedirectURI
		conf.Scopes = []string{
			"https://www.googleapis.com/auth/calendar.events",
			"https://www.googleapis.com/auth/drive.readonly",
		}
	}
	return conf
}

// ConsentURL builds the offline-access consent page URL. The prompt is
// forced so Google always returns a refresh token.
func (c *oauthClient) ConsentURL(kind, state string) string {
	return c.oauthConfig(kind).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (c *oauthClient) Exchange(ctx context.Context, code, kind string) (*ExchangeResult, error) {
	conf := c.oauthConfig(kind)

	token, err := conf.Exchange(ctx, code, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token granted")
	}

	result := &ExchangeResult{RefreshToken: token.RefreshToken}

	if kind == KindParsing {
		svc, err := gmail.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail service: %w", err)
		}
		profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get mailbox profile: %w", err)
		}
		result.Email = profile.EmailAddress
	}

	return result, nil
}

func (c *oauthClient) TokenSource(ctx context.Context, refreshToken, kind string) oauth2.TokenSource {
	conf := c.oauthConfig(kind)
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
