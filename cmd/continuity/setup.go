package main

import (
	"context"

	"github.com/jzempel/continuity/internal/codehost"
	"github.com/jzempel/continuity/internal/config"
	"github.com/jzempel/continuity/internal/debug"
	"github.com/jzempel/continuity/internal/git"
	"github.com/jzempel/continuity/internal/telemetry"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/workflow"
)

// openEngine initializes the configured tracker against store and wires
// it to the working tree's repository and code host.
func openEngine(ctx context.Context, store tracker.ConfigStore, settings config.Settings) (*workflow.Engine, error) {
	repo := git.Open("")
	remoteURL, err := repo.RemoteURL(ctx, settings.Remote)
	if err != nil {
		debug.Logf("no remote %s: %v\n", settings.Remote, err)
	}

	adapter, err := tracker.NewAdapter(settings.Tracker)
	if err != nil {
		return nil, err
	}
	adapter = telemetry.WrapAdapter(adapter)
	cfg := tracker.NewConfig(adapter.ConfigPrefix(), store)
	cfg.RemoteURL = remoteURL
	if err := adapter.Init(ctx, cfg); err != nil {
		return nil, err
	}

	var host workflow.CodeHost
	if remoteURL != "" {
		h, _, err := codehost.NewFactory(hostOptions(store)).HostFor(ctx, remoteURL)
		if err != nil {
			debug.Logf("no code host for %s: %v\n", remoteURL, err)
		} else {
			host = h
		}
	}

	e := workflow.NewEngine(settings, adapter, repo, host)
	e.OnMessage = func(msg string) { debug.PrintNormal("%s\n", msg) }
	e.OnWarning = func(msg string) { WarnError("%s", msg) }
	return e, nil
}

// workspaceFor describes the repository for telemetry resources. The
// remote is reduced to owner/repo so no credentials in the URL leak.
func workspaceFor(ctx context.Context, settings config.Settings) telemetry.Workspace {
	ws := telemetry.Workspace{Version: Version, Tracker: settings.Tracker}
	remoteURL, err := git.Open("").RemoteURL(ctx, settings.Remote)
	if err != nil {
		return ws
	}
	if info, err := git.ParseRepoURL(remoteURL); err == nil {
		ws.RepoSlug = info.Slug()
		ws.CodeHost = string(info.Platform)
	}
	return ws
}

// hostOptions reads code host credentials, falling back to GITHUB_TOKEN
// and friends the way tracker settings do.
func hostOptions(store tracker.ConfigStore) codehost.Options {
	gh := tracker.NewConfig("github", store)
	gl := tracker.NewConfig("gitlab", store)
	return codehost.Options{
		GitHubToken:  gh.Get("token"),
		GitHubAPIURL: gh.Get("api-url"),
		GitLabToken:  gl.Get("token"),
		GitLabURL:    gl.Get("url"),
	}
}
