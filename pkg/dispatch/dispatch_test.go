package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcpagent/cosvault/pkg/app"
	"github.com/vcpagent/cosvault/pkg/config"
	"github.com/vcpagent/cosvault/pkg/cosclient"
	"github.com/vcpagent/cosvault/pkg/dispatch"
	"github.com/vcpagent/cosvault/pkg/dto"
)

// memoryClient is a minimal in-memory storage client for end-to-end
// dispatcher tests.
type memoryClient struct {
	objects map[string][]byte
	scans   map[string]*dto.ScanJob
}

func newMemoryClient() *memoryClient {
	return &memoryClient{
		objects: make(map[string][]byte),
		scans:   make(map[string]*dto.ScanJob),
	}
}

func (m *memoryClient) Put(_ context.Context, key string, body io.Reader, _ string, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryClient) UploadFile(_ context.Context, key, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryClient) Download(_ context.Context, key, destPath string) (int64, error) {
	data, ok := m.objects[key]
	if !ok {
		return 0, &cosclient.ServiceError{Code: "NoSuchKey", Message: key}
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (m *memoryClient) Copy(_ context.Context, destKey, sourceKey string) error {
	data, ok := m.objects[sourceKey]
	if !ok {
		return &cosclient.ServiceError{Code: "NoSuchKey", Message: sourceKey}
	}
	m.objects[destKey] = append([]byte(nil), data...)
	return nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryClient) ListPage(_ context.Context, prefix, marker string, _ int32) (*cosclient.ListPage, error) {
	page := &cosclient.ListPage{}
	var keys []string
	for key := range m.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		page.Entries = append(page.Entries, cosclient.ObjectEntry{Key: key, Size: int64(len(m.objects[key]))})
	}
	return page, nil
}

func (m *memoryClient) ScanSubmit(context.Context, string, string) (*dto.ScanJob, error) {
	job := &dto.ScanJob{JobID: "ss-test", State: "Submitted", CreationTime: "2024-01-01T00:00:00Z"}
	m.scans[job.JobID] = job
	return job, nil
}

func (m *memoryClient) ScanQuery(_ context.Context, jobID string) (*dto.ScanJob, error) {
	job, ok := m.scans[jobID]
	if !ok {
		return nil, &cosclient.ServiceError{Code: "NoSuchJob", Message: jobID}
	}
	return job, nil
}

func newDispatcher(t *testing.T, client cosclient.Client) *dispatch.Dispatcher {
	t.Helper()
	cfg := config.Config{
		SecretID:            "id",
		SecretKey:           "key",
		Bucket:              "test-bucket",
		Region:              "ap-beijing",
		ParentDir:           "VCPAgentAI",
		FoldersConfig:       "notes:true:true:true:true:true",
		CompressThresholdMB: 100,
		DownloadDir:         filepath.Join(t.TempDir(), "download"),
	}
	return dispatch.New(app.NewWithClient(cfg, client))
}

func run(t *testing.T, d *dispatch.Dispatcher, command map[string]any) (dto.Envelope, bool) {
	t.Helper()
	raw, err := json.Marshal(command)
	require.NoError(t, err)
	return d.Run(context.Background(), raw)
}

func TestRun_MalformedJSON(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	envelope, ok := d.Run(context.Background(), []byte("{not json"))
	assert.False(t, ok)
	assert.Equal(t, dto.StatusError, envelope.Status)
	assert.Contains(t, envelope.Error, "invalid JSON input")
}

func TestRun_UnrecognizedCommand(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	envelope, ok := run(t, d, map[string]any{"command": "teleport_file"})
	assert.False(t, ok)
	assert.Equal(t, dto.StatusError, envelope.Status)
	assert.Contains(t, envelope.Error, "unrecognized command")
}

func TestRun_MissingCommand(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	envelope, ok := run(t, d, map[string]any{})
	assert.False(t, ok)
	assert.Contains(t, envelope.Error, "command")
}

func TestRun_MissingRequiredFields(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	testCases := []struct {
		name    string
		command map[string]any
		missing string
	}{
		{"upload without local_path", map[string]any{"command": "upload_file", "cos_folder": "notes"}, "local_path"},
		{"upload without cos_folder", map[string]any{"command": "upload_file", "local_path": "/tmp/x"}, "cos_folder"},
		{"download without cos_key", map[string]any{"command": "download_file"}, "cos_key"},
		{"copy without source", map[string]any{"command": "copy_file", "target_cos_folder": "notes"}, "source_cos_key"},
		{"move without target", map[string]any{"command": "move_file", "source_cos_key": "VCPAgentAI/notes/a"}, "target_cos_folder"},
		{"delete without cos_key", map[string]any{"command": "delete_file"}, "cos_key"},
		{"scan by key without key", map[string]any{"command": "submit_virus_detection_by_key"}, "key"},
		{"scan by url without url", map[string]any{"command": "submit_virus_detection_by_url"}, "url"},
		{"query without job_id", map[string]any{"command": "query_virus_detection"}, "job_id"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			envelope, ok := run(t, d, tc.command)
			assert.False(t, ok)
			assert.Equal(t, dto.StatusError, envelope.Status)
			assert.Contains(t, envelope.Error, tc.missing)
		})
	}
}

func TestRun_GetPermissions(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	envelope, ok := run(t, d, map[string]any{"command": "get_permissions"})
	require.True(t, ok)
	assert.Equal(t, dto.StatusSuccess, envelope.Status)

	result, isPermissions := envelope.Result.(*dto.PermissionsResult)
	require.True(t, isPermissions)
	assert.Equal(t, "test-bucket", result.BucketName)
	assert.Contains(t, result.Permissions, `"notes"`)
}

func TestRun_UploadThenDownload(t *testing.T) {
	client := newMemoryClient()
	d := newDispatcher(t, client)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0o644))

	envelope, ok := run(t, d, map[string]any{
		"command":    "upload_file",
		"local_path": local,
		"cos_folder": "notes",
	})
	require.True(t, ok, "upload failed: %s", envelope.Error)

	up, isUpload := envelope.Result.(*dto.UploadResult)
	require.True(t, isUpload)
	assert.Equal(t, "VCPAgentAI/notes/a.txt", up.CosKey)

	envelope, ok = run(t, d, map[string]any{
		"command": "download_file",
		"cos_key": up.CosKey,
	})
	require.True(t, ok, "download failed: %s", envelope.Error)

	down, isDownload := envelope.Result.(*dto.DownloadResult)
	require.True(t, isDownload)
	data, err := os.ReadFile(down.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRun_MoveFile(t *testing.T) {
	client := newMemoryClient()
	client.objects["VCPAgentAI/notes/a.txt"] = []byte("x")
	d := newDispatcher(t, client)

	envelope, ok := run(t, d, map[string]any{
		"command":           "move_file",
		"source_cos_key":    "VCPAgentAI/notes/a.txt",
		"target_cos_folder": "notes",
		"target_filename":   "b.txt",
	})
	require.True(t, ok, "move failed: %s", envelope.Error)

	result, isMove := envelope.Result.(*dto.MoveResult)
	require.True(t, isMove)
	assert.Equal(t, "VCPAgentAI/notes/b.txt", result.TargetCosKey)
	assert.NotContains(t, client.objects, "VCPAgentAI/notes/a.txt")
}

func TestRun_ListFiles(t *testing.T) {
	client := newMemoryClient()
	client.objects["VCPAgentAI/notes/a.txt"] = []byte("x")
	d := newDispatcher(t, client)

	// Explicit folder.
	envelope, ok := run(t, d, map[string]any{"command": "list_files", "cos_folder": "notes"})
	require.True(t, ok)
	single, isList := envelope.Result.(*dto.ListResult)
	require.True(t, isList)
	assert.Len(t, single.Files, 1)

	// No folder: one entry per configured folder.
	envelope, ok = run(t, d, map[string]any{"command": "list_files"})
	require.True(t, ok)
	all, isListAll := envelope.Result.(*dto.ListAllResult)
	require.True(t, isListAll)
	assert.Len(t, all.Folders, 1)
	assert.Len(t, all.Folders["notes"].Files, 1)
}

func TestRun_ListFilesEmptyFolderIsNotListAll(t *testing.T) {
	client := newMemoryClient()
	client.objects["VCPAgentAI/notes/a.txt"] = []byte("x")
	d := newDispatcher(t, client)

	// An explicitly empty folder names a folder, and no folder named ""
	// is ever configured; only an absent field lists everything.
	envelope, ok := run(t, d, map[string]any{"command": "list_files", "cos_folder": ""})
	assert.False(t, ok)
	assert.Equal(t, dto.StatusError, envelope.Status)
	assert.Contains(t, envelope.Error, "not configured")
}

func TestRun_PermissionDeniedYieldsErrorEnvelope(t *testing.T) {
	client := newMemoryClient()
	client.objects["VCPAgentAI/vault/a.txt"] = []byte("x")
	d := newDispatcher(t, client)

	envelope, ok := run(t, d, map[string]any{
		"command": "delete_file",
		"cos_key": "VCPAgentAI/vault/a.txt",
	})
	assert.False(t, ok)
	assert.Equal(t, dto.StatusError, envelope.Status)
	assert.Contains(t, envelope.Error, "not configured")
}

func TestRun_ScanLifecycle(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	envelope, ok := run(t, d, map[string]any{
		"command": "submit_virus_detection_by_key",
		"key":     "VCPAgentAI/notes/a.txt",
	})
	require.True(t, ok, "submit failed: %s", envelope.Error)
	job, isJob := envelope.Result.(*dto.ScanJob)
	require.True(t, isJob)
	assert.Equal(t, "ss-test", job.JobID)

	envelope, ok = run(t, d, map[string]any{
		"command": "query_virus_detection",
		"job_id":  job.JobID,
	})
	require.True(t, ok)
	queried, isJob := envelope.Result.(*dto.ScanJob)
	require.True(t, isJob)
	assert.Equal(t, "Submitted", queried.State)
}

func TestRun_EnvelopeSerializes(t *testing.T) {
	d := newDispatcher(t, newMemoryClient())

	envelope, _ := run(t, d, map[string]any{"command": "get_permissions"})
	data, err := json.Marshal(envelope)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "success", decoded["status"])
	assert.Contains(t, decoded, "result")
	assert.NotContains(t, decoded, "error")
}
