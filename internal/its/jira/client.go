// Package jira reads project versions and fixed bugs from the Jira REST API
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/its"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Apache Software Foundation Jira instance
	DefaultBaseURL = "https://issues.apache.org/jira"

	projectPath = "/rest/api/2/project/"
	searchPath  = "/rest/api/2/search"

	issueFields = "key,fixVersions,versions,created"
	// createdLayout matches the leading part of Jira's "created" timestamp;
	// the zone offset is ignored
	createdLayout = "2006-01-02T15:04:05"
	releaseLayout = "2006-01-02"
)

// Config holds configuration for the Jira client
type Config struct {
	BaseURL   string        // Jira root URL (default: DefaultBaseURL)
	Project   string        // Project key
	Token     string        // Optional bearer token
	RateLimit float64       // Requests per second (default: 5)
	PageSize  int           // Issues per search page (default: 1000)
	Timeout   time.Duration // Per-request timeout (default: 30s)
}

// Client fetches releases and issues for one project
type Client struct {
	config      Config
	http        *http.Client
	rateLimiter *rate.Limiter
	logger      *logrus.Logger
}

var _ its.Tracker = (*Client)(nil)

// NewClient creates a new Jira client with rate limiting
func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, errors.ConfigError("jira project is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.ConfigErrorf("invalid jira base url %q: %v", cfg.BaseURL, err)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		config:      cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:      logger,
	}, nil
}

type projectResponse struct {
	Versions []version `json:"versions"`
}

type version struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"releaseDate"`
}

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type issue struct {
	Key    string `json:"key"`
	Fields struct {
		FixVersions []version `json:"fixVersions"`
		Versions    []version `json:"versions"`
		Created     string    `json:"created"`
	} `json:"fields"`
}

// Releases returns the project's dated versions ordered by release date.
// Versions without an id, name or release date are skipped.
func (c *Client) Releases(ctx context.Context) ([]models.Release, error) {
	var resp projectResponse
	endpoint := c.config.BaseURL + projectPath + url.PathEscape(strings.ToUpper(c.config.Project))
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}

	releases := make([]models.Release, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		release, ok := toRelease(v)
		if !ok {
			c.logger.WithFields(logrus.Fields{
				"project": c.config.Project,
				"version": v.Name,
			}).Debug("Skipping undated version")
			continue
		}
		releases = append(releases, release)
	}
	its.SortReleases(releases)

	c.logger.WithFields(logrus.Fields{
		"project":  c.config.Project,
		"releases": len(releases),
	}).Info("Fetched releases")
	return releases, nil
}

// Issues returns closed or resolved fixed bugs. Issues without a fix
// version are discarded.
func (c *Client) Issues(ctx context.Context) ([]models.Issue, error) {
	var issues []models.Issue
	startAt := 0

	for {
		query := url.Values{}
		query.Set("jql", BugQuery(c.config.Project))
		query.Set("fields", issueFields)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(c.config.PageSize))

		var page searchResponse
		if err := c.get(ctx, c.config.BaseURL+searchPath+"?"+query.Encode(), &page); err != nil {
			return nil, fmt.Errorf("search issues at %d: %w", startAt, err)
		}

		for _, raw := range page.Issues {
			is, ok, err := toIssue(raw)
			if err != nil {
				return nil, err
			}
			if ok {
				issues = append(issues, is)
			}
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"project": c.config.Project,
		"issues":  len(issues),
	}).Info("Fetched issues")
	return issues, nil
}

// BugQuery is the JQL selecting fixed bugs of project
func BugQuery(project string) string {
	return fmt.Sprintf(`project = "%s" AND issueType = "Bug" AND (status = "closed" OR status = "resolved") AND resolution = "fixed"`, project)
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.NetworkErrorf(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NetworkErrorf(err, "GET %s", req.URL.Path)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Jira request")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NetworkErrorf(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "GET %s", req.URL.Path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NetworkErrorf(err, "decode %s", req.URL.Path)
	}
	return nil
}

func toRelease(v version) (models.Release, bool) {
	if v.ID == "" || v.Name == "" || v.ReleaseDate == "" {
		return models.Release{}, false
	}
	id, err := strconv.Atoi(v.ID)
	if err != nil {
		return models.Release{}, false
	}
	day, err := time.Parse(releaseLayout, v.ReleaseDate)
	if err != nil {
		return models.Release{}, false
	}
	return models.Release{ID: id, Name: v.Name, Date: its.EndOfDay(day)}, true
}

func toIssue(raw issue) (models.Issue, bool, error) {
	fixed, err := versionIDs(raw.Fields.FixVersions)
	if err != nil {
		return models.Issue{}, false, fmt.Errorf("issue %s fix versions: %w", raw.Key, err)
	}
	if len(fixed) == 0 {
		return models.Issue{}, false, nil
	}
	affected, err := versionIDs(raw.Fields.Versions)
	if err != nil {
		return models.Issue{}, false, fmt.Errorf("issue %s affected versions: %w", raw.Key, err)
	}

	if len(raw.Fields.Created) < len(createdLayout) {
		return models.Issue{}, false, errors.ValidationErrorf("issue %s has invalid created date %q", raw.Key, raw.Fields.Created)
	}
	created, err := time.Parse(createdLayout, raw.Fields.Created[:len(createdLayout)])
	if err != nil {
		return models.Issue{}, false, errors.ValidationErrorf("issue %s has invalid created date %q", raw.Key, raw.Fields.Created)
	}

	return models.Issue{
		Key:                raw.Key,
		AffectedVersionIDs: affected,
		FixedVersionIDs:    fixed,
		Created:            created,
	}, true, nil
}

func versionIDs(versions []version) ([]int, error) {
	ids := make([]int, 0, len(versions))
	for _, v := range versions {
		id, err := strconv.Atoi(v.ID)
		if err != nil {
			return nil, errors.ValidationErrorf("invalid version id %q", v.ID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
