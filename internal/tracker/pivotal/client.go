package pivotal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jzempel/continuity/internal/tracker"
)

// DefaultAPIURL is the Pivotal Tracker v5 API root.
const DefaultAPIURL = "https://www.pivotaltracker.com/services/v5"

// storyFields requests owners and requester alongside the defaults.
const storyFields = ":default,owners,requested_by"

// Person is a Pivotal Tracker account.
type Person struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Initials string `json:"initials"`
}

// Story represents a Pivotal Tracker story from the REST API.
type Story struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	StoryType    string    `json:"story_type"`
	CurrentState string    `json:"current_state"`
	Estimate     *float64  `json:"estimate"`
	URL          string    `json:"url"`
	OwnerIDs     []int64   `json:"owner_ids"`
	Owners       []Person  `json:"owners"`
	RequestedBy  *Person   `json:"requested_by"`
	Labels       []Label   `json:"labels"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Label is a story label.
type Label struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Iteration groups stories in the backlog.
type Iteration struct {
	Number  int     `json:"number"`
	Stories []Story `json:"stories"`
}

// Task is a story task.
type Task struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Complete    bool   `json:"complete"`
	Position    int    `json:"position"`
}

// Comment is a story comment.
type Comment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Person    *Person   `json:"person"`
	CreatedAt time.Time `json:"created_at"`
}

// Client provides HTTP access to the Pivotal Tracker API.
type Client struct {
	rest      *tracker.RESTClient
	ProjectID int64
}

// NewClient creates a new Pivotal Tracker client for one project.
func NewClient(apiURL, token string, projectID int64) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		rest: tracker.NewRESTClient(apiURL, func(req *http.Request) {
			req.Header.Set("X-TrackerToken", token)
		}),
		ProjectID: projectID,
	}
}

func (c *Client) projectPath(format string, args ...interface{}) string {
	return fmt.Sprintf("projects/%d/", c.ProjectID) + fmt.Sprintf(format, args...)
}

// Me returns the account the token belongs to.
func (c *Client) Me(ctx context.Context) (*Person, error) {
	var p Person
	if err := c.rest.Do(ctx, http.MethodGet, "me", nil, nil, &p); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &p, nil
}

// Backlog returns the stories of the current and backlog iterations. When
// the current backlog is empty the plain backlog scope is tried.
func (c *Client) Backlog(ctx context.Context) ([]Story, error) {
	query := url.Values{
		"scope":  {"current_backlog"},
		"fields": {":default,stories(" + storyFields + ")"},
	}
	var iterations []Iteration
	if err := c.rest.Do(ctx, http.MethodGet, c.projectPath("iterations"), query, nil, &iterations); err != nil {
		return nil, fmt.Errorf("get backlog: %w", err)
	}
	if len(iterations) == 0 {
		query.Set("scope", "backlog")
		if err := c.rest.Do(ctx, http.MethodGet, c.projectPath("iterations"), query, nil, &iterations); err != nil {
			return nil, fmt.Errorf("get backlog: %w", err)
		}
	}

	var stories []Story
	for _, it := range iterations {
		stories = append(stories, it.Stories...)
	}
	return stories, nil
}

// GetStory fetches a single story.
func (c *Client) GetStory(ctx context.Context, id int64) (*Story, error) {
	var s Story
	query := url.Values{"fields": {storyFields}}
	if err := c.rest.Do(ctx, http.MethodGet, c.projectPath("stories/%d", id), query, nil, &s); err != nil {
		return nil, fmt.Errorf("get story %d: %w", id, err)
	}
	return &s, nil
}

// UpdateStory sets the story state and, when ownerID is non-zero, its owner.
func (c *Client) UpdateStory(ctx context.Context, id int64, state string, ownerIDs []int64) (*Story, error) {
	body := map[string]interface{}{"current_state": state}
	if len(ownerIDs) > 0 {
		body["owner_ids"] = ownerIDs
	}
	var s Story
	query := url.Values{"fields": {storyFields}}
	if err := c.rest.Do(ctx, http.MethodPut, c.projectPath("stories/%d", id), query, body, &s); err != nil {
		return nil, fmt.Errorf("update story %d: %w", id, err)
	}
	return &s, nil
}

// Tasks lists the story's tasks.
func (c *Client) Tasks(ctx context.Context, storyID int64) ([]Task, error) {
	var tasks []Task
	if err := c.rest.Do(ctx, http.MethodGet, c.projectPath("stories/%d/tasks", storyID), nil, nil, &tasks); err != nil {
		return nil, fmt.Errorf("get tasks for story %d: %w", storyID, err)
	}
	return tasks, nil
}

// SetTask marks a task complete or incomplete.
func (c *Client) SetTask(ctx context.Context, storyID, taskID int64, complete bool) (*Task, error) {
	var task Task
	body := map[string]bool{"complete": complete}
	if err := c.rest.Do(ctx, http.MethodPut, c.projectPath("stories/%d/tasks/%d", storyID, taskID), nil, body, &task); err != nil {
		return nil, fmt.Errorf("update task %d: %w", taskID, err)
	}
	return &task, nil
}

// Comments lists the story's comments.
func (c *Client) Comments(ctx context.Context, storyID int64) ([]Comment, error) {
	var comments []Comment
	query := url.Values{"fields": {":default,person"}}
	if err := c.rest.Do(ctx, http.MethodGet, c.projectPath("stories/%d/comments", storyID), query, nil, &comments); err != nil {
		return nil, fmt.Errorf("get comments for story %d: %w", storyID, err)
	}
	return comments, nil
}

// AddComment posts a comment on the story.
func (c *Client) AddComment(ctx context.Context, storyID int64, text string) error {
	body := map[string]string{"text": text}
	if err := c.rest.Do(ctx, http.MethodPost, c.projectPath("stories/%d/comments", storyID), nil, body, nil); err != nil {
		return fmt.Errorf("add comment to story %d: %w", storyID, err)
	}
	return nil
}
