// Package permission implements the per-folder capability policy.
//
// The policy is parsed once at startup from a descriptor string of the
// form "name:upload:list:download:delete:copy_move,..." and is immutable
// afterwards, so it is safe to consult from any operation. A folder that
// is absent from the configuration has no permissions at all.
package permission

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Actions understood by Check.
const (
	ActionUpload   = "upload"
	ActionList     = "list"
	ActionDownload = "download"
	ActionDelete   = "delete"
	ActionCopyMove = "copy_move"
)

const descriptorFields = 6

// FolderPermission holds the capability flags of one configured folder.
type FolderPermission struct {
	FolderName string
	Upload     bool
	List       bool
	Download   bool
	Delete     bool
	CopyMove   bool
}

// Describe renders a human-readable summary of the folder's flags.
func (p FolderPermission) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "folder %q permissions:\n", p.FolderName)
	fmt.Fprintf(&b, "- upload: %s\n", allowDeny(p.Upload))
	fmt.Fprintf(&b, "- list: %s\n", allowDeny(p.List))
	fmt.Fprintf(&b, "- download: %s\n", allowDeny(p.Download))
	fmt.Fprintf(&b, "- delete: %s\n", allowDeny(p.Delete))
	fmt.Fprintf(&b, "- copy/move: %s", allowDeny(p.CopyMove))
	return b.String()
}

func allowDeny(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// Policy maps folder names to their permissions.
type Policy struct {
	perms map[string]FolderPermission
	order []string
}

// Parse builds a Policy from the comma-separated descriptor string.
// Descriptors with a field count other than six are skipped with a
// diagnostic; a malformed descriptor never aborts parsing the rest.
// A nil logger disables diagnostics.
func Parse(foldersConfig string, log *slog.Logger) *Policy {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Policy{perms: make(map[string]FolderPermission)}
	if strings.TrimSpace(foldersConfig) == "" {
		return p
	}
	for _, descriptor := range strings.Split(foldersConfig, ",") {
		parts := strings.Split(strings.TrimSpace(descriptor), ":")
		if len(parts) != descriptorFields {
			log.Warn("skipping malformed folder descriptor",
				slog.String("descriptor", descriptor),
				slog.Int("fields", len(parts)))
			continue
		}
		name := parts[0]
		if _, exists := p.perms[name]; !exists {
			p.order = append(p.order, name)
		}
		p.perms[name] = FolderPermission{
			FolderName: name,
			Upload:     parseFlag(parts[1]),
			List:       parseFlag(parts[2]),
			Download:   parseFlag(parts[3]),
			Delete:     parseFlag(parts[4]),
			CopyMove:   parseFlag(parts[5]),
		}
		log.Info("parsed folder permission", slog.String("folder", name))
	}
	return p
}

// parseFlag treats anything other than a case-insensitive "true" as false.
func parseFlag(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// Get returns the permission entry for a folder.
func (p *Policy) Get(folder string) (FolderPermission, bool) {
	perm, ok := p.perms[folder]
	return perm, ok
}

// Folders returns the configured folder names in configuration order.
func (p *Policy) Folders() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Check reports whether action is allowed on folder, with a reason.
// Unknown folders and unknown actions are both denied.
func (p *Policy) Check(folder, action string) (bool, string) {
	perm, ok := p.perms[folder]
	if !ok {
		return false, fmt.Sprintf("folder %q is not configured", folder)
	}

	var allowed bool
	switch action {
	case ActionUpload:
		allowed = perm.Upload
	case ActionList:
		allowed = perm.List
	case ActionDownload:
		allowed = perm.Download
	case ActionDelete:
		allowed = perm.Delete
	case ActionCopyMove:
		allowed = perm.CopyMove
	default:
		return false, fmt.Sprintf("unknown action: %s", action)
	}

	if allowed {
		return true, "permission granted"
	}
	return false, fmt.Sprintf("folder %q does not allow %q", folder, action)
}

// Describe renders the description of every configured folder,
// in configuration order.
func (p *Policy) Describe() string {
	descriptions := make([]string, 0, len(p.order))
	for _, name := range p.order {
		descriptions = append(descriptions, p.perms[name].Describe())
	}
	return strings.Join(descriptions, "\n\n")
}
