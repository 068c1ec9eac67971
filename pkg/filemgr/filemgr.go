// Package filemgr orchestrates the folder-scoped file operations. Every
// operation consults the permission policy before touching the remote
// store; uploads additionally consult the compression policy.
package filemgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vcpagent/cosvault/pkg/archive"
	"github.com/vcpagent/cosvault/pkg/config"
	"github.com/vcpagent/cosvault/pkg/cosclient"
	"github.com/vcpagent/cosvault/pkg/dto"
	"github.com/vcpagent/cosvault/pkg/permission"
)

const listPageSize = 1000

// ErrInvalidKey marks object keys that do not have the canonical
// "{parent_dir}/{folder}/{name}" shape.
var ErrInvalidKey = errors.New("invalid COS key")

// ErrPermissionDenied marks operations refused by the folder policy.
var ErrPermissionDenied = errors.New("permission denied")

// Manager is the permission-gated file manager.
type Manager struct {
	cfg      config.Config
	client   cosclient.Client
	policy   *permission.Policy
	zip      archive.Policy
	compress func(src, dest string) error
	log      *slog.Logger
}

// New creates a Manager. The client and the policy are shared read-only;
// by default the logger is set to discard.
func New(cfg config.Config, client cosclient.Client, policy *permission.Policy) *Manager {
	return &Manager{
		cfg:      cfg,
		client:   client,
		policy:   policy,
		zip:      archive.NewPolicy(cfg.CompressThresholdMB),
		compress: archive.CompressToZip,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger
func (m *Manager) SetLogger(log *slog.Logger) {
	m.log = log
}

// KeyFolder validates the canonical key shape and returns the folder
// segment. A valid key has at least three slash-delimited segments and
// starts with the configured parent directory.
func (m *Manager) KeyFolder(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != m.cfg.ParentDir {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return parts[1], nil
}

func (m *Manager) checkPermission(folder, action string) error {
	allowed, reason := m.policy.Check(folder, action)
	if !allowed {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, reason)
	}
	return nil
}

// Upload transfers a local file or directory into a folder. Directories
// and files over the compression threshold are zipped first; the remote
// key then gains a ".zip" suffix. A compression failure falls back to
// uploading the raw path. The temporary archive is removed on every
// exit path.
func (m *Manager) Upload(ctx context.Context, localPath, folder, remoteName string) (*dto.UploadResult, error) {
	if err := m.checkPermission(folder, permission.ActionUpload); err != nil {
		return nil, err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("local path does not exist: %s", localPath)
	}
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	key := m.cfg.ParentDir + "/" + folder + "/" + remoteName
	sizeMB := float64(info.Size()) / archive.MiB

	if m.zip.ShouldCompress(info.Size(), info.IsDir()) {
		tmp, err := os.CreateTemp("", "cosvault-*.zip")
		if err != nil {
			return nil, fmt.Errorf("Upload: error creating temporary archive: %w", err)
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		zerr := m.compress(localPath, tmpPath)
		if zerr == nil {
			key += ".zip"
			if err := m.client.UploadFile(ctx, key, tmpPath); err != nil {
				return nil, err
			}
			m.log.Info("file compressed and uploaded",
				slog.String("localPath", localPath),
				slog.String("key", key))
			return &dto.UploadResult{
				CosKey:         key,
				OriginalSizeMB: sizeMB,
				Compressed:     true,
				Message:        fmt.Sprintf("compressed and uploaded to %s", key),
			}, nil
		}
		// Compression failure is non-fatal, retry with the raw path.
		m.log.Warn("compression failed, uploading raw path",
			slog.String("localPath", localPath),
			slog.String("error", zerr.Error()))
	}

	if err := m.client.UploadFile(ctx, key, localPath); err != nil {
		return nil, err
	}
	m.log.Info("file uploaded",
		slog.String("localPath", localPath),
		slog.String("key", key))
	return &dto.UploadResult{
		CosKey:  key,
		SizeMB:  sizeMB,
		Message: fmt.Sprintf("uploaded to %s", key),
	}, nil
}

// Download fetches an object to localPath. When localPath is empty the
// configured download directory is used; destination parent directories
// are created in either case.
func (m *Manager) Download(ctx context.Context, key, localPath string) (*dto.DownloadResult, error) {
	folder, err := m.KeyFolder(key)
	if err != nil {
		return nil, err
	}
	if err := m.checkPermission(folder, permission.ActionDownload); err != nil {
		return nil, err
	}

	if localPath == "" {
		parts := strings.Split(key, "/")
		localPath = filepath.Join(m.cfg.DownloadDir, parts[len(parts)-1])
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, fmt.Errorf("Download: error creating destination directory: %w", err)
	}

	n, err := m.client.Download(ctx, key, localPath)
	if err != nil {
		return nil, err
	}
	m.log.Info("file downloaded",
		slog.String("key", key),
		slog.String("localPath", localPath))
	return &dto.DownloadResult{
		CosKey:    key,
		LocalPath: localPath,
		SizeMB:    float64(n) / archive.MiB,
		Message:   fmt.Sprintf("downloaded to %s", localPath),
	}, nil
}

// Copy duplicates an object into targetFolder. copy_move permission is
// required on both the source folder and the target folder.
func (m *Manager) Copy(ctx context.Context, sourceKey, targetFolder, targetName string) (*dto.CopyResult, error) {
	sourceFolder, err := m.KeyFolder(sourceKey)
	if err != nil {
		return nil, err
	}
	if err := m.checkPermission(sourceFolder, permission.ActionCopyMove); err != nil {
		return nil, err
	}
	if err := m.checkPermission(targetFolder, permission.ActionCopyMove); err != nil {
		return nil, err
	}

	if targetName == "" {
		parts := strings.Split(sourceKey, "/")
		targetName = parts[len(parts)-1]
	}
	targetKey := m.cfg.ParentDir + "/" + targetFolder + "/" + targetName

	if err := m.client.Copy(ctx, targetKey, sourceKey); err != nil {
		return nil, err
	}
	m.log.Info("file copied",
		slog.String("sourceKey", sourceKey),
		slog.String("targetKey", targetKey))
	return &dto.CopyResult{
		SourceCosKey: sourceKey,
		TargetCosKey: targetKey,
		Message:      fmt.Sprintf("copied %s to %s", sourceKey, targetKey),
	}, nil
}

// Move is copy followed by deletion of the source. The copy step already
// authorizes the source folder for copy_move, so the delete step skips
// the permission check. A failed deletion after a successful copy is
// reported as a warning, not a failure: the copy is authoritative.
func (m *Manager) Move(ctx context.Context, sourceKey, targetFolder, targetName string) (*dto.MoveResult, error) {
	copied, err := m.Copy(ctx, sourceKey, targetFolder, targetName)
	if err != nil {
		return nil, err
	}

	result := &dto.MoveResult{
		SourceCosKey: sourceKey,
		TargetCosKey: copied.TargetCosKey,
		Message:      fmt.Sprintf("moved %s to %s", sourceKey, copied.TargetCosKey),
	}
	if _, derr := m.Delete(ctx, sourceKey, true); derr != nil {
		m.log.Warn("source deletion failed after copy",
			slog.String("sourceKey", sourceKey),
			slog.String("error", derr.Error()))
		result.Warning = fmt.Sprintf("source deletion failed: %s", derr.Error())
	}
	m.log.Info("file moved",
		slog.String("sourceKey", sourceKey),
		slog.String("targetKey", copied.TargetCosKey))
	return result, nil
}

// Delete removes a single object. Keys ending in a path separator are
// directory markers and are never individually deletable. The permission
// check is skipped only for the internal delete step of Move.
func (m *Manager) Delete(ctx context.Context, key string, skipPermissionCheck bool) (*dto.DeleteResult, error) {
	folder, err := m.KeyFolder(key)
	if err != nil {
		return nil, err
	}
	if !skipPermissionCheck {
		if err := m.checkPermission(folder, permission.ActionDelete); err != nil {
			return nil, err
		}
	}
	if strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("%w: %q is a directory marker, only files can be deleted", ErrInvalidKey, key)
	}

	if err := m.client.Delete(ctx, key); err != nil {
		return nil, err
	}
	m.log.Info("file deleted", slog.String("key", key))
	return &dto.DeleteResult{
		CosKey:  key,
		Message: fmt.Sprintf("deleted %s", key),
	}, nil
}

// List returns the listing of one folder, gated on its list permission.
func (m *Manager) List(ctx context.Context, folder string) (*dto.ListResult, error) {
	if err := m.checkPermission(folder, permission.ActionList); err != nil {
		return nil, err
	}
	files, err := m.listFolder(ctx, folder)
	if err != nil {
		return nil, err
	}
	return &dto.ListResult{
		Files:   files,
		Message: fmt.Sprintf("folder %q contains %d files", folder, len(files)),
	}, nil
}

// ListAll lists every configured folder. A failure listing one folder is
// recorded inline for that folder and does not suppress the others.
func (m *Manager) ListAll(ctx context.Context) (*dto.ListAllResult, error) {
	result := &dto.ListAllResult{
		Folders: make(map[string]dto.FolderListing),
		Message: "listed all configured folders",
	}
	for _, folder := range m.policy.Folders() {
		files, err := m.listFolder(ctx, folder)
		if err != nil {
			m.log.Warn("folder listing failed",
				slog.String("folder", folder),
				slog.String("error", err.Error()))
			result.Folders[folder] = dto.FolderListing{Error: err.Error()}
			continue
		}
		result.Folders[folder] = dto.FolderListing{Files: files}
	}
	return result, nil
}

// listFolder pages through the folder prefix until the remote signals no
// further pages, skipping the folder's own placeholder object.
func (m *Manager) listFolder(ctx context.Context, folder string) ([]dto.FileEntry, error) {
	prefix := m.cfg.ParentDir + "/" + folder + "/"
	files := []dto.FileEntry{}
	marker := ""
	for {
		page, err := m.client.ListPage(ctx, prefix, marker, listPageSize)
		if err != nil {
			return nil, err
		}
		for _, entry := range page.Entries {
			if entry.Key == prefix {
				continue
			}
			files = append(files, dto.FileEntry{
				Key:          entry.Key,
				Name:         strings.TrimPrefix(entry.Key, prefix),
				Size:         entry.Size,
				LastModified: entry.LastModified,
				ETag:         entry.ETag,
			})
		}
		if !page.Truncated {
			break
		}
		marker = page.NextMarker
	}
	m.log.Debug("listed folder",
		slog.String("folder", folder),
		slog.Int("count", len(files)))
	return files, nil
}
