// Package app wires the configured components together and bootstraps
// the bucket's canonical folder layout.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vcpagent/cosvault/pkg/config"
	"github.com/vcpagent/cosvault/pkg/cosclient"
	"github.com/vcpagent/cosvault/pkg/dto"
	"github.com/vcpagent/cosvault/pkg/filemgr"
	"github.com/vcpagent/cosvault/pkg/permission"
	"github.com/vcpagent/cosvault/pkg/scan"
)

const directoryContentType = "application/x-directory"

// App owns the process-wide configuration context: the storage client,
// the immutable permission policy and the services built on them.
type App struct {
	cfg    config.Config
	client cosclient.Client
	policy *permission.Policy
	files  *filemgr.Manager
	scans  *scan.Coordinator
	log    *slog.Logger
}

// New validates the configuration and creates the app with the COS
// backend. Missing credentials or bucket settings are fatal.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := cosclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("NewApp: error creating COS client: %w", err)
	}
	return NewWithClient(cfg, backend), nil
}

// NewWithClient creates the app around an injected storage client.
func NewWithClient(cfg config.Config, client cosclient.Client) *App {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := permission.Parse(cfg.FoldersConfig, log)
	a := &App{
		cfg:    cfg,
		client: client,
		policy: policy,
		files:  filemgr.New(cfg, client, policy),
		scans:  scan.New(cfg, client),
		log:    log,
	}
	return a
}

// SetLogger sets the logger on the app and its services.
func (a *App) SetLogger(log *slog.Logger) {
	a.log = log
	a.files.SetLogger(log)
	a.scans.SetLogger(log)
	if backend, ok := a.client.(*cosclient.Backend); ok {
		backend.SetLogger(log)
	}
}

// Files returns the file manager.
func (a *App) Files() *filemgr.Manager { return a.files }

// Scans returns the scan coordinator.
func (a *App) Scans() *scan.Coordinator { return a.scans }

// Policy returns the permission policy.
func (a *App) Policy() *permission.Policy { return a.policy }

// Permissions renders the get_permissions result.
func (a *App) Permissions() *dto.PermissionsResult {
	return &dto.PermissionsResult{
		BucketName:          a.cfg.Bucket,
		Region:              a.cfg.Region,
		ParentDirectory:     a.cfg.ParentDir,
		Permissions:         a.policy.Describe(),
		CompressThresholdMB: a.cfg.CompressThresholdMB,
	}
}

// EnsureFolderLayout idempotently creates the parent-directory
// placeholder object and one placeholder per configured folder.
func (a *App) EnsureFolderLayout(ctx context.Context) error {
	parentKey := a.cfg.ParentDir + "/"
	if err := a.putPlaceholder(ctx, parentKey); err != nil {
		return fmt.Errorf("EnsureFolderLayout: error creating parent directory: %w", err)
	}
	for _, folder := range a.policy.Folders() {
		folderKey := parentKey + folder + "/"
		if err := a.putPlaceholder(ctx, folderKey); err != nil {
			return fmt.Errorf("EnsureFolderLayout: error creating folder %q: %w", folder, err)
		}
	}
	a.log.Info("folder layout verified",
		slog.String("parentDir", a.cfg.ParentDir),
		slog.Int("folders", len(a.policy.Folders())))
	return nil
}

func (a *App) putPlaceholder(ctx context.Context, key string) error {
	return a.client.Put(ctx, key, strings.NewReader(""), directoryContentType, 0)
}
