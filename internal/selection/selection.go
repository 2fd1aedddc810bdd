// Package selection owns the set of user-selected file paths across all
// loaded root directories. Directories are never members; their selection
// state is derived from descendant files on demand.
package selection

import (
	"fmt"
	"sort"

	"github.com/askrepo/askrepo/internal/types"
	"github.com/askrepo/askrepo/internal/utils"
)

// Confirmer answers yes/no questions raised by selection transitions, such
// as overriding the ignore status of a file or removing a root directory.
type Confirmer interface {
	Confirm(question string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(question string) bool

// Confirm invokes the wrapped function.
func (confirm ConfirmerFunc) Confirm(question string) bool {
	return confirm(question)
}

const ignoredFileConfirmationFormat = "%s is excluded by ignore rules. Select it anyway?"

// Model tracks selected file paths and remembers explicit deselections so a
// rescan never silently re-selects them. Ignored files the user confirmed
// into the selection are remembered separately so a rescan does not drop
// them while they still exist.
type Model struct {
	selectedPaths        map[string]struct{}
	explicitDeselections map[string]struct{}
	confirmedOverrides   map[string]struct{}
}

// NewModel constructs an empty selection model.
func NewModel() *Model {
	return &Model{
		selectedPaths:        make(map[string]struct{}),
		explicitDeselections: make(map[string]struct{}),
		confirmedOverrides:   make(map[string]struct{}),
	}
}

// IsSelected reports membership of a file path.
func (model *Model) IsSelected(filePath string) bool {
	_, isMember := model.selectedPaths[filePath]
	return isMember
}

// Count returns the number of selected file paths.
func (model *Model) Count() int {
	return len(model.selectedPaths)
}

// SelectedPaths returns the selected file paths in sorted order.
func (model *Model) SelectedPaths() []string {
	paths := make([]string, 0, len(model.selectedPaths))
	for selectedPath := range model.selectedPaths {
		paths = append(paths, selectedPath)
	}
	sort.Strings(paths)
	return paths
}

// ToggleFile flips the selection state of a single file node. Selecting an
// ignored file requires confirmation through confirmer; without confirmation
// the state is left unchanged. The return value reports the resulting
// selection state of the path.
func (model *Model) ToggleFile(fileNode *types.FileTreeNode, confirmer Confirmer) bool {
	if fileNode == nil || fileNode.IsDirectory {
		return false
	}
	if model.IsSelected(fileNode.Path) {
		delete(model.selectedPaths, fileNode.Path)
		delete(model.confirmedOverrides, fileNode.Path)
		model.explicitDeselections[fileNode.Path] = struct{}{}
		return false
	}
	if fileNode.IsIgnored() {
		if confirmer == nil || !confirmer.Confirm(formatIgnoredConfirmation(fileNode.Path)) {
			return false
		}
		model.confirmedOverrides[fileNode.Path] = struct{}{}
	}
	model.selectedPaths[fileNode.Path] = struct{}{}
	delete(model.explicitDeselections, fileNode.Path)
	return true
}

// ToggleDirectory selects every non-ignored descendant file when the
// directory is not yet fully selected and deselects them all otherwise.
// Ignored descendants are never included even when the directory is toggled on.
func (model *Model) ToggleDirectory(directoryNode *types.FileTreeNode) {
	if directoryNode == nil || !directoryNode.IsDirectory {
		return
	}
	if model.DirectoryState(directoryNode) == types.DirectorySelectionFull {
		directoryNode.WalkFiles(func(fileNode *types.FileTreeNode) {
			delete(model.selectedPaths, fileNode.Path)
			delete(model.confirmedOverrides, fileNode.Path)
			model.explicitDeselections[fileNode.Path] = struct{}{}
		})
		return
	}
	directoryNode.WalkFiles(func(fileNode *types.FileTreeNode) {
		model.selectedPaths[fileNode.Path] = struct{}{}
		delete(model.explicitDeselections, fileNode.Path)
	})
}

// SelectTree selects every non-ignored descendant file of a freshly added
// root, skipping paths the user previously deselected by hand.
func (model *Model) SelectTree(rootNode *types.FileTreeNode) {
	rootNode.WalkFiles(func(fileNode *types.FileTreeNode) {
		if _, wasDeselected := model.explicitDeselections[fileNode.Path]; wasDeselected {
			return
		}
		model.selectedPaths[fileNode.Path] = struct{}{}
	})
}

// DirectoryState derives none/partial/full from the directory's non-ignored
// descendant files. A directory without eligible descendants reports none.
func (model *Model) DirectoryState(directoryNode *types.FileTreeNode) types.DirectorySelectionState {
	totalFiles := 0
	selectedFiles := 0
	directoryNode.WalkFiles(func(fileNode *types.FileTreeNode) {
		totalFiles++
		if model.IsSelected(fileNode.Path) {
			selectedFiles++
		}
	})
	switch {
	case totalFiles == 0 || selectedFiles == 0:
		return types.DirectorySelectionNone
	case selectedFiles == totalFiles:
		return types.DirectorySelectionFull
	default:
		return types.DirectorySelectionPartial
	}
}

// RemoveUnderRoot discards every selected path prefixed by rootPath and
// returns the removed paths.
func (model *Model) RemoveUnderRoot(rootPath string) []string {
	var removedPaths []string
	for selectedPath := range model.selectedPaths {
		if utils.HasPathPrefix(selectedPath, rootPath) {
			removedPaths = append(removedPaths, selectedPath)
			delete(model.selectedPaths, selectedPath)
			delete(model.confirmedOverrides, selectedPath)
		}
	}
	sort.Strings(removedPaths)
	return removedPaths
}

// Reconcile retains a selected path only while it still exists in the
// freshly scanned trees and is not newly ignored by either policy. Paths the
// user confirmed past an ignore rule stay selected while the file remains on
// disk. Explicit deselections are remembered, so nothing is re-selected here.
func (model *Model) Reconcile(rootNodes []*types.FileTreeNode) {
	livePaths := make(map[string]bool)
	for _, rootNode := range rootNodes {
		collectFilePaths(rootNode, livePaths)
	}
	for selectedPath := range model.selectedPaths {
		eligible, present := livePaths[selectedPath]
		if !present {
			delete(model.selectedPaths, selectedPath)
			delete(model.confirmedOverrides, selectedPath)
			continue
		}
		if _, overridden := model.confirmedOverrides[selectedPath]; overridden {
			continue
		}
		if !eligible {
			delete(model.selectedPaths, selectedPath)
		}
	}
}

// collectFilePaths records every file path in the subtree with its
// eligibility (true when not ignored). Ignored directories contribute no
// descendants because the scanner never recursed into them.
func collectFilePaths(node *types.FileTreeNode, filePaths map[string]bool) {
	if node == nil {
		return
	}
	if !node.IsDirectory {
		filePaths[node.Path] = !node.IsIgnored()
		return
	}
	for _, childNode := range node.Children {
		collectFilePaths(childNode, filePaths)
	}
}

func formatIgnoredConfirmation(filePath string) string {
	return fmt.Sprintf(ignoredFileConfirmationFormat, filePath)
}
