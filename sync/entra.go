package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphScope    = "https://graph.microsoft.com/.default"
	graphPageSize = 999

	selectFields = "id,userPrincipalName,displayName,accountEnabled,department,employeeId,jobTitle"
	expandFields = "manager($select=id,displayName,userPrincipalName)"
)

// EntraSource reads the user roster from Microsoft Entra ID over the Graph
// API. It implements DirectorySource.
type EntraSource struct {
	cfg    AzureConfig
	client *http.Client
	retry  RetryPolicy
	log    *zap.Logger

	users []*DirectoryUser
}

// NewEntraSource creates a DirectorySource for the given tenant.
func NewEntraSource(cfg AzureConfig, client *http.Client, retry RetryPolicy, log *zap.Logger) *EntraSource {
	return &EntraSource{cfg: cfg, client: client, retry: retry, log: log}
}

// Users enumerates the fetched roster. Populate must have succeeded first.
func (s *EntraSource) Users(cb func(*DirectoryUser)) {
	for _, u := range s.users {
		cb(u)
	}
}

type graphManager struct {
	Id                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type graphUser struct {
	Id                string        `json:"id"`
	UserPrincipalName string        `json:"userPrincipalName"`
	DisplayName       string        `json:"displayName"`
	AccountEnabled    bool          `json:"accountEnabled"`
	Department        string        `json:"department"`
	EmployeeId        string        `json:"employeeId"`
	JobTitle          string        `json:"jobTitle"`
	Manager           *graphManager `json:"manager"`
}

type graphUserPage struct {
	Value    []graphUser `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// Populate authenticates with the client-credentials grant and pages through
// the full user listing, expanding the manager relationship in the listing
// call. Tenants that reject $expand fall back to one manager lookup per user.
func (s *EntraSource) Populate(ctx context.Context) error {
	token, err := s.acquireToken(ctx)
	if err != nil {
		return err
	}

	users, err := s.listUsers(ctx, token, true)
	var statusErr *httpStatusError
	expanded := true
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusBadRequest {
		s.log.Warn("graph rejected manager expansion, falling back to per-user lookups",
			zap.String("detail", statusErr.Body))
		expanded = false
		users, err = s.listUsers(ctx, token, false)
	}
	if err != nil {
		return err
	}

	s.users = make([]*DirectoryUser, 0, len(users))
	for i := range users {
		gu := &users[i]
		du := &DirectoryUser{
			Id:             gu.Id,
			DisplayName:    gu.DisplayName,
			Email:          gu.UserPrincipalName,
			JobTitle:       gu.JobTitle,
			Department:     gu.Department,
			EmployeeId:     gu.EmployeeId,
			Enabled:        gu.AccountEnabled,
			ServiceAccount: isServiceAccount(gu.UserPrincipalName, gu.DisplayName),
		}
		if gu.Manager != nil {
			du.ManagerId = gu.Manager.Id
			du.ManagerName = gu.Manager.DisplayName
			du.ManagerEmail = gu.Manager.UserPrincipalName
		} else if !expanded {
			s.resolveManager(ctx, token, du)
		}
		s.users = append(s.users, du)
	}

	s.log.Info("roster fetched", zap.Int("users", len(s.users)), zap.Bool("manager_expanded", expanded))
	return nil
}

func (s *EntraSource) acquireToken(ctx context.Context) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     s.cfg.ClientId,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     s.cfg.TokenURL,
		Scopes:       []string{graphScope},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	var token *oauth2.Token
	err := s.retry.Do(func() error {
		var err error
		token, err = cc.Token(ctx)
		if err == nil {
			return nil
		}
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			if retryableStatus(rErr.Response.StatusCode) {
				return err
			}
			return backoff.Permanent(&AuthError{
				Endpoint: "Entra ID token endpoint",
				Status:   rErr.Response.StatusCode,
				Detail:   string(rErr.Body),
			})
		}
		return err
	})
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", authErr
		}
		return "", fmt.Errorf("obtaining Entra ID token: %w", err)
	}
	return token.AccessToken, nil
}

func (s *EntraSource) listUsers(ctx context.Context, token string, expand bool) ([]graphUser, error) {
	query := url.Values{}
	query.Set("$select", selectFields)
	query.Set("$top", fmt.Sprintf("%d", graphPageSize))
	if expand {
		query.Set("$expand", expandFields)
	}
	next := fmt.Sprintf("%s/users?%s", s.cfg.GraphBaseURL, query.Encode())

	var users []graphUser
	for next != "" {
		var page graphUserPage
		if err := s.getJSON(ctx, token, next, &page); err != nil {
			return nil, err
		}
		users = append(users, page.Value...)
		next = page.NextLink
	}
	return users, nil
}

// resolveManager issues the per-user manager lookup. A 404 means the user has
// no manager; any other failure is logged and leaves the manager unresolved.
func (s *EntraSource) resolveManager(ctx context.Context, token string, du *DirectoryUser) {
	var manager graphManager
	uri := fmt.Sprintf("%s/users/%s/manager", s.cfg.GraphBaseURL, url.PathEscape(du.Id))
	if err := s.getJSON(ctx, token, uri, &manager); err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return
		}
		s.log.Warn("manager lookup failed, leaving manager unresolved",
			zap.String("user", du.Email), zap.Error(err))
		return
	}
	du.ManagerId = manager.Id
	du.ManagerName = manager.DisplayName
	du.ManagerEmail = manager.UserPrincipalName
}

func (s *EntraSource) getJSON(ctx context.Context, token, uri string, out any) error {
	return s.retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&AuthError{Endpoint: "Graph API", Status: resp.StatusCode, Detail: string(body)})
		case retryableStatus(resp.StatusCode):
			return &httpStatusError{Method: req.Method, URL: uri, Status: resp.StatusCode, Body: string(body)}
		case resp.StatusCode >= 300:
			return backoff.Permanent(&httpStatusError{Method: req.Method, URL: uri, Status: resp.StatusCode, Body: string(body)})
		}
		return json.Unmarshal(body, out)
	})
}
