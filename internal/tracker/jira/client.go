package jira

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jzempel/continuity/internal/tracker"
)

// Issue represents a Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Status      *StatusField    `json:"status"`
	IssueType   *IssueTypeField `json:"issuetype"`
	Project     *ProjectField   `json:"project"`
	Assignee    *User           `json:"assignee"`
	Reporter    *User           `json:"reporter"`
	Labels      []string        `json:"labels"`
	Subtasks    []Issue         `json:"subtasks"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
}

// StatusField represents a Jira issue status.
type StatusField struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory"`
}

// StatusCategory groups statuses into new, indeterminate and done.
type StatusCategory struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueTypeField represents a Jira issue type.
type IssueTypeField struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// ProjectField represents a Jira project.
type ProjectField struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// User represents a Jira user.
type User struct {
	Name         string `json:"name,omitempty"`
	Key          string `json:"key,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Transition is an available workflow step for an issue.
type Transition struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	To     StatusField      `json:"to"`
	Fields TransitionFields `json:"fields"`
}

// TransitionFields lists the fields a transition screen asks for.
type TransitionFields struct {
	Resolution *ResolutionField `json:"resolution"`
}

// ResolutionField describes the resolution a transition may require.
type ResolutionField struct {
	Required      bool         `json:"required"`
	AllowedValues []Resolution `json:"allowedValues"`
}

// Resolution is an issue resolution such as "Fixed".
type Resolution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is an issue comment.
type Comment struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Author  *User  `json:"author"`
	Created string `json:"created"`
}

// SearchResult represents a Jira JQL search response.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL  string
	rest *tracker.RESTClient
}

// NewClient creates a new Jira client. With a username requests use Basic
// auth, otherwise the token is sent as a bearer token.
func NewClient(baseURL, username, apiToken string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	auth := func(req *http.Request) {
		if username != "" {
			creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + apiToken))
			req.Header.Set("Authorization", "Basic "+creds)
		} else {
			req.Header.Set("Authorization", "Bearer "+apiToken)
		}
	}
	return &Client{
		URL:  baseURL,
		rest: tracker.NewRESTClient(baseURL+"/rest/api/2", auth),
	}
}

// searchFields is the default set of fields to request in search/get queries.
const searchFields = "summary,description,status,issuetype,project,assignee,reporter,labels,subtasks,created,updated"

// SearchIssues queries Jira using JQL and returns all matching issues, handling pagination.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	var allIssues []Issue
	startAt := 0
	maxResults := 100

	for {
		params := url.Values{
			"jql":        {jql},
			"fields":     {searchFields},
			"startAt":    {fmt.Sprintf("%d", startAt)},
			"maxResults": {fmt.Sprintf("%d", maxResults)},
		}

		var result SearchResult
		if err := c.rest.Do(ctx, http.MethodGet, "search", params, nil, &result); err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		allIssues = append(allIssues, result.Issues...)

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		startAt += len(result.Issues)
	}

	return allIssues, nil
}

// GetIssue fetches a single Jira issue by key (e.g., "PROJ-123").
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	params := url.Values{"fields": {searchFields}}
	if err := c.rest.Do(ctx, http.MethodGet, "issue/"+url.PathEscape(key), params, nil, &issue); err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}
	return &issue, nil
}

// Myself returns the authenticated user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.rest.Do(ctx, http.MethodGet, "myself", nil, nil, &u); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &u, nil
}

// Transitions lists the transitions available for an issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	var result struct {
		Transitions []Transition `json:"transitions"`
	}
	params := url.Values{"expand": {"transitions.fields"}}
	if err := c.rest.Do(ctx, http.MethodGet, "issue/"+url.PathEscape(key)+"/transitions", params, nil, &result); err != nil {
		return nil, fmt.Errorf("get transitions for %s: %w", key, err)
	}
	return result.Transitions, nil
}

// DoTransition moves an issue through a transition, with an optional
// resolution id for transitions that require one.
func (c *Client) DoTransition(ctx context.Context, key, transitionID, resolutionID string) error {
	body := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}
	if resolutionID != "" {
		body["fields"] = map[string]interface{}{
			"resolution": map[string]string{"id": resolutionID},
		}
	}
	if err := c.rest.Do(ctx, http.MethodPost, "issue/"+url.PathEscape(key)+"/transitions", nil, body, nil); err != nil {
		return fmt.Errorf("transition %s: %w", key, err)
	}
	return nil
}

// SetAssignee assigns the issue. Cloud instances identify users by
// account id, server instances by name.
func (c *Client) SetAssignee(ctx context.Context, key string, u *User) error {
	body := map[string]string{}
	if u.AccountID != "" {
		body["accountId"] = u.AccountID
	} else {
		body["name"] = u.Name
	}
	if err := c.rest.Do(ctx, http.MethodPut, "issue/"+url.PathEscape(key)+"/assignee", nil, body, nil); err != nil {
		return fmt.Errorf("assign %s: %w", key, err)
	}
	return nil
}

// Comments lists the issue comments.
func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	var result struct {
		Comments []Comment `json:"comments"`
	}
	if err := c.rest.Do(ctx, http.MethodGet, "issue/"+url.PathEscape(key)+"/comment", nil, nil, &result); err != nil {
		return nil, fmt.Errorf("get comments for %s: %w", key, err)
	}
	return result.Comments, nil
}

// AddComment posts a comment on the issue.
func (c *Client) AddComment(ctx context.Context, key, text string) error {
	body := map[string]string{"body": text}
	if err := c.rest.Do(ctx, http.MethodPost, "issue/"+url.PathEscape(key)+"/comment", nil, body, nil); err != nil {
		return fmt.Errorf("add comment to %s: %w", key, err)
	}
	return nil
}

// BrowseURL returns the web URL for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.URL + "/browse/" + key
}

// jiraTimeLayouts are the timestamp formats Jira is known to emit.
var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339,
}

// ParseTimestamp parses a Jira timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized Jira timestamp %q", s)
}
