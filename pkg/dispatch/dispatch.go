// Package dispatch maps one command envelope to exactly one operation
// and renders the uniform result envelope. This is a single-shot batch
// model: one command in, one result out, then the process terminates.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vcpagent/cosvault/pkg/app"
	"github.com/vcpagent/cosvault/pkg/dto"
)

// Request is the command envelope read from stdin. The Command field
// selects the operation; the remaining fields are command-specific.
type Request struct {
	Command string `json:"command"`

	LocalPath string `json:"local_path,omitempty"`
	// CosFolder is a pointer: list_files distinguishes an absent folder
	// (list every configured folder) from an explicitly empty one.
	CosFolder       *string `json:"cos_folder,omitempty"`
	RemoteFilename  string  `json:"remote_filename,omitempty"`
	CosKey          string  `json:"cos_key,omitempty"`
	SourceCosKey    string  `json:"source_cos_key,omitempty"`
	TargetCosFolder string  `json:"target_cos_folder,omitempty"`
	TargetFilename  string  `json:"target_filename,omitempty"`
	Key             string  `json:"key,omitempty"`
	URL             string  `json:"url,omitempty"`
	JobID           string  `json:"job_id,omitempty"`
}

// Dispatcher routes one command to the app's services.
type Dispatcher struct {
	app *app.App
	log *slog.Logger
}

// New creates a Dispatcher.
// By default the logger is set to discard.
func New(a *app.App) *Dispatcher {
	return &Dispatcher{app: a, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// SetLogger sets the logger
func (d *Dispatcher) SetLogger(log *slog.Logger) {
	d.log = log
}

// Run decodes raw as a command envelope, executes the operation and
// returns the result envelope plus whether the command succeeded. Every
// failure is converted to an error envelope; nothing is propagated.
func (d *Dispatcher) Run(ctx context.Context, raw []byte) (dto.Envelope, bool) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		d.log.Error("invalid JSON input", slog.String("error", err.Error()))
		return errorEnvelope("invalid JSON input"), false
	}

	result, err := d.execute(ctx, req)
	if err != nil {
		d.log.Error("command failed",
			slog.String("command", req.Command),
			slog.String("error", err.Error()))
		return errorEnvelope(err.Error()), false
	}
	return dto.Envelope{Status: dto.StatusSuccess, Result: result}, true
}

func (d *Dispatcher) execute(ctx context.Context, req Request) (any, error) {
	switch req.Command {
	case "get_permissions":
		return d.app.Permissions(), nil

	case "upload_file":
		folder := stringValue(req.CosFolder)
		if err := require(req.LocalPath, "local_path", folder, "cos_folder"); err != nil {
			return nil, err
		}
		return d.app.Files().Upload(ctx, req.LocalPath, folder, req.RemoteFilename)

	case "download_file":
		if err := require(req.CosKey, "cos_key"); err != nil {
			return nil, err
		}
		return d.app.Files().Download(ctx, req.CosKey, req.LocalPath)

	case "copy_file":
		if err := require(req.SourceCosKey, "source_cos_key", req.TargetCosFolder, "target_cos_folder"); err != nil {
			return nil, err
		}
		return d.app.Files().Copy(ctx, req.SourceCosKey, req.TargetCosFolder, req.TargetFilename)

	case "move_file":
		if err := require(req.SourceCosKey, "source_cos_key", req.TargetCosFolder, "target_cos_folder"); err != nil {
			return nil, err
		}
		return d.app.Files().Move(ctx, req.SourceCosKey, req.TargetCosFolder, req.TargetFilename)

	case "delete_file":
		if err := require(req.CosKey, "cos_key"); err != nil {
			return nil, err
		}
		return d.app.Files().Delete(ctx, req.CosKey, false)

	case "list_files":
		if req.CosFolder == nil {
			return d.app.Files().ListAll(ctx)
		}
		return d.app.Files().List(ctx, *req.CosFolder)

	case "submit_virus_detection_by_key":
		if err := require(req.Key, "key"); err != nil {
			return nil, err
		}
		return d.app.Scans().Submit(ctx, req.Key, "")

	case "submit_virus_detection_by_url":
		if err := require(req.URL, "url"); err != nil {
			return nil, err
		}
		return d.app.Scans().Submit(ctx, "", req.URL)

	case "query_virus_detection":
		if err := require(req.JobID, "job_id"); err != nil {
			return nil, err
		}
		return d.app.Scans().Query(ctx, req.JobID)

	case "":
		return nil, fmt.Errorf("missing required field: command")

	default:
		return nil, fmt.Errorf("unrecognized command: %q", req.Command)
	}
}

// require checks value/name pairs and reports every missing field.
func require(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] == "" {
			missing = append(missing, pairs[i+1])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func errorEnvelope(msg string) dto.Envelope {
	return dto.Envelope{Status: dto.StatusError, Error: msg}
}
