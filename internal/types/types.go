// Package types defines every cross-package data structure used by the askrepo CLI.
package types

// IgnoreReason tags why a tree node is excluded from selection and export.
type IgnoreReason string

const (
	// IgnoreReasonNone marks a node that is fully eligible.
	IgnoreReasonNone IgnoreReason = ""
	// IgnoreReasonGitignore marks a node excluded by a .gitignore rule.
	// Such nodes are retained in the tree but never scanned beneath.
	IgnoreReasonGitignore IgnoreReason = "gitignore"
	// IgnoreReasonSystem marks a node excluded by the system ignore list.
	// Such nodes are dropped from the tree entirely at scan time.
	IgnoreReasonSystem IgnoreReason = "system"
)

// ValidatedPath is an absolute input path that already passed existence checks.
type ValidatedPath struct {
	AbsolutePath string
	IsDir        bool
}

// FileTreeNode represents one filesystem entry produced by a scan.
// Nodes are immutable once constructed and replaced wholesale on rescan.
type FileTreeNode struct {
	Name         string          `json:"name"`
	Path         string          `json:"path"`
	IsDirectory  bool            `json:"isDirectory"`
	IgnoreReason IgnoreReason    `json:"ignoreReason,omitempty"`
	SizeBytes    int64           `json:"sizeBytes,omitempty"`
	LastModified string          `json:"lastModified,omitempty"`
	Children     []*FileTreeNode `json:"children,omitempty"`
}

// IsIgnored reports whether the node carries any ignore reason.
func (node *FileTreeNode) IsIgnored() bool {
	return node.IgnoreReason != IgnoreReasonNone
}

// WalkFiles invokes visit for every non-ignored file node in the subtree,
// depth-first in child order.
func (node *FileTreeNode) WalkFiles(visit func(fileNode *FileTreeNode)) {
	if node == nil || node.IsIgnored() {
		return
	}
	if !node.IsDirectory {
		visit(node)
		return
	}
	for _, childNode := range node.Children {
		childNode.WalkFiles(visit)
	}
}

// ExportFile pairs the absolute path used to read a file with the display
// path emitted in the export document.
type ExportFile struct {
	AbsolutePath string
	DisplayPath  string
}

// DirectorySelectionState is the derived selection state of a directory.
type DirectorySelectionState string

const (
	DirectorySelectionNone    DirectorySelectionState = "none"
	DirectorySelectionPartial DirectorySelectionState = "partial"
	DirectorySelectionFull    DirectorySelectionState = "full"
)
