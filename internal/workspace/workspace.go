// Package workspace coordinates the scanned file trees, the selection model,
// and the token accounting cache behind a single mutex so command handlers
// and watchers observe a consistent view.
package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/askrepo/askrepo/internal/accounting"
	"github.com/askrepo/askrepo/internal/export"
	"github.com/askrepo/askrepo/internal/ignore"
	"github.com/askrepo/askrepo/internal/scanner"
	"github.com/askrepo/askrepo/internal/selection"
	"github.com/askrepo/askrepo/internal/tokenizer"
	"github.com/askrepo/askrepo/internal/types"
	"github.com/askrepo/askrepo/internal/utils"
)

const (
	duplicateRootFormat          = "root %s is already loaded"
	unknownRootFormat            = "root %s is not loaded"
	unknownPathFormat            = "path %s is not part of any loaded root"
	removeRootConfirmationFormat = "Remove root %s and deselect %d selected files?"
)

// Options configures a Workspace. Zero values fall back to package defaults.
type Options struct {
	SystemPatterns []string
	// Model selects the tokenizer model. Empty uses the package default.
	Model       string
	BatchSize   int
	QuietPeriod time.Duration
	// Warn receives non-fatal messages from scans. Nil disables reporting.
	Warn func(message string)
	// OnTotalChanged observes the combined token total after recomputes and
	// prompt commits. Nil disables reporting.
	OnTotalChanged func(total int)
}

// Workspace is the mutable application state shared by commands and watchers.
type Workspace struct {
	mutex           sync.Mutex
	directoryScan   *scanner.Scanner
	selectionModel  *selection.Model
	tokenCache      *accounting.Cache
	promptDebouncer *accounting.Debouncer
	trees           map[string]*types.FileTreeNode
	rootOrder       []string
	promptText      string
	promptTokens    int
	onTotalChanged  func(total int)
}

// New builds an empty workspace with the supplied system ignore patterns.
func New(options Options) *Workspace {
	systemPatterns := options.SystemPatterns
	if len(systemPatterns) == 0 {
		systemPatterns = ignore.DefaultSystemPatterns
	}
	built := &Workspace{
		directoryScan: &scanner.Scanner{
			SystemPolicy: ignore.NewSystemIgnorePolicy(systemPatterns),
			Warn:         options.Warn,
		},
		selectionModel:  selection.NewModel(),
		tokenCache:      accounting.NewCache(options.BatchSize),
		promptDebouncer: accounting.NewDebouncer(options.QuietPeriod),
		trees:           map[string]*types.FileTreeNode{},
		onTotalChanged:  options.OnTotalChanged,
	}
	built.tokenCache.OnProgress = func(int) { built.notifyTotalChanged() }
	if options.Model != "" && options.Model != tokenizer.DefaultModel {
		if modelCounter, _, counterError := tokenizer.NewCounter(tokenizer.Config{Model: options.Model}); counterError == nil {
			estimate := func(text string) int {
				tokens, countError := modelCounter.CountString(text)
				if countError != nil {
					return tokenizer.EstimateSync(text)
				}
				return tokens
			}
			built.tokenCache.Estimate = estimate
			built.promptDebouncer.Estimate = estimate
		}
	}
	return built
}

// AddRoot scans the directory and selects its whole eligible subtree. Roots
// already loaded are rejected; previously loaded roots keep their selections.
func (sharedWorkspace *Workspace) AddRoot(ctx context.Context, rootPath string) (*types.FileTreeNode, error) {
	rootNode, scanError := sharedWorkspace.directoryScan.Scan(rootPath)
	if scanError != nil {
		return nil, scanError
	}

	sharedWorkspace.mutex.Lock()
	if _, alreadyLoaded := sharedWorkspace.trees[rootNode.Path]; alreadyLoaded {
		sharedWorkspace.mutex.Unlock()
		return nil, fmt.Errorf(duplicateRootFormat, rootNode.Path)
	}
	sharedWorkspace.trees[rootNode.Path] = rootNode
	sharedWorkspace.rootOrder = append(sharedWorkspace.rootOrder, rootNode.Path)
	sharedWorkspace.selectionModel.SelectTree(rootNode)
	selectedPaths := sharedWorkspace.selectionModel.SelectedPaths()
	sharedWorkspace.mutex.Unlock()

	sharedWorkspace.tokenCache.RecomputeAll(ctx, selectedPaths)
	sharedWorkspace.notifyTotalChanged()
	return rootNode, nil
}

// RemoveRoot drops the root's tree and every selection underneath it. When
// selections would be lost the confirmer is consulted first; a nil confirmer
// removes unconditionally.
func (sharedWorkspace *Workspace) RemoveRoot(ctx context.Context, rootPath string, confirmer selection.Confirmer) (bool, error) {
	absoluteRoot, absoluteError := filepath.Abs(rootPath)
	if absoluteError != nil {
		return false, types.NewError(types.ErrorKindInvalidPath, rootPath, absoluteError)
	}

	sharedWorkspace.mutex.Lock()
	if _, loaded := sharedWorkspace.trees[absoluteRoot]; !loaded {
		sharedWorkspace.mutex.Unlock()
		return false, fmt.Errorf(unknownRootFormat, absoluteRoot)
	}
	selectedUnderRoot := 0
	for _, selectedPath := range sharedWorkspace.selectionModel.SelectedPaths() {
		if utils.HasPathPrefix(selectedPath, absoluteRoot) {
			selectedUnderRoot++
		}
	}
	sharedWorkspace.mutex.Unlock()

	if selectedUnderRoot > 0 && confirmer != nil {
		if !confirmer.Confirm(fmt.Sprintf(removeRootConfirmationFormat, absoluteRoot, selectedUnderRoot)) {
			return false, nil
		}
	}

	sharedWorkspace.mutex.Lock()
	delete(sharedWorkspace.trees, absoluteRoot)
	remainingOrder := sharedWorkspace.rootOrder[:0]
	for _, orderedRoot := range sharedWorkspace.rootOrder {
		if orderedRoot != absoluteRoot {
			remainingOrder = append(remainingOrder, orderedRoot)
		}
	}
	sharedWorkspace.rootOrder = remainingOrder
	sharedWorkspace.selectionModel.RemoveUnderRoot(absoluteRoot)
	selectedPaths := sharedWorkspace.selectionModel.SelectedPaths()
	sharedWorkspace.mutex.Unlock()

	sharedWorkspace.tokenCache.RecomputeAll(ctx, selectedPaths)
	sharedWorkspace.notifyTotalChanged()
	return true, nil
}

// SetSystemPatterns replaces the system ignore policy and rescans every
// loaded root so the new rules take effect.
func (sharedWorkspace *Workspace) SetSystemPatterns(ctx context.Context, patternLines []string) error {
	sharedWorkspace.mutex.Lock()
	sharedWorkspace.directoryScan.SystemPolicy = ignore.NewSystemIgnorePolicy(patternLines)
	sharedWorkspace.mutex.Unlock()
	return sharedWorkspace.Refresh(ctx)
}

// Refresh rescans every loaded root, reconciles selections against the fresh
// trees, and recomputes token totals for what survived.
func (sharedWorkspace *Workspace) Refresh(ctx context.Context) error {
	sharedWorkspace.mutex.Lock()
	rootPaths := append([]string{}, sharedWorkspace.rootOrder...)
	sharedWorkspace.mutex.Unlock()

	freshTrees := make(map[string]*types.FileTreeNode, len(rootPaths))
	for _, rootPath := range rootPaths {
		rootNode, scanError := sharedWorkspace.directoryScan.Scan(rootPath)
		if scanError != nil {
			return scanError
		}
		freshTrees[rootPath] = rootNode
	}

	sharedWorkspace.mutex.Lock()
	orderedNodes := make([]*types.FileTreeNode, 0, len(rootPaths))
	for _, rootPath := range rootPaths {
		sharedWorkspace.trees[rootPath] = freshTrees[rootPath]
		orderedNodes = append(orderedNodes, freshTrees[rootPath])
	}
	sharedWorkspace.selectionModel.Reconcile(orderedNodes)
	selectedPaths := sharedWorkspace.selectionModel.SelectedPaths()
	sharedWorkspace.mutex.Unlock()

	sharedWorkspace.tokenCache.RecomputeAll(ctx, selectedPaths)
	sharedWorkspace.notifyTotalChanged()
	return nil
}

// ToggleFile flips the selection of the file at absolutePath. The resulting
// selected state is returned.
func (sharedWorkspace *Workspace) ToggleFile(ctx context.Context, absolutePath string, confirmer selection.Confirmer) (bool, error) {
	sharedWorkspace.mutex.Lock()
	fileNode := sharedWorkspace.findNodeLocked(absolutePath)
	if fileNode == nil || fileNode.IsDirectory {
		sharedWorkspace.mutex.Unlock()
		return false, fmt.Errorf(unknownPathFormat, absolutePath)
	}
	selected := sharedWorkspace.selectionModel.ToggleFile(fileNode, confirmer)
	selectedPaths := sharedWorkspace.selectionModel.SelectedPaths()
	sharedWorkspace.mutex.Unlock()

	sharedWorkspace.tokenCache.RecomputeAll(ctx, selectedPaths)
	sharedWorkspace.notifyTotalChanged()
	return selected, nil
}

// ToggleDirectory flips the selection of the whole directory subtree.
func (sharedWorkspace *Workspace) ToggleDirectory(ctx context.Context, absolutePath string) error {
	sharedWorkspace.mutex.Lock()
	directoryNode := sharedWorkspace.findNodeLocked(absolutePath)
	if directoryNode == nil || !directoryNode.IsDirectory {
		sharedWorkspace.mutex.Unlock()
		return fmt.Errorf(unknownPathFormat, absolutePath)
	}
	sharedWorkspace.selectionModel.ToggleDirectory(directoryNode)
	selectedPaths := sharedWorkspace.selectionModel.SelectedPaths()
	sharedWorkspace.mutex.Unlock()

	sharedWorkspace.tokenCache.RecomputeAll(ctx, selectedPaths)
	sharedWorkspace.notifyTotalChanged()
	return nil
}

// SetPromptText updates the prompt and schedules a debounced token estimate.
func (sharedWorkspace *Workspace) SetPromptText(promptText string) {
	sharedWorkspace.mutex.Lock()
	sharedWorkspace.promptText = promptText
	sharedWorkspace.mutex.Unlock()

	sharedWorkspace.promptDebouncer.Schedule(promptText, func(tokens int) {
		sharedWorkspace.mutex.Lock()
		sharedWorkspace.promptTokens = tokens
		sharedWorkspace.mutex.Unlock()
		sharedWorkspace.notifyTotalChanged()
	})
}

// PromptText returns the current prompt text.
func (sharedWorkspace *Workspace) PromptText() string {
	sharedWorkspace.mutex.Lock()
	defer sharedWorkspace.mutex.Unlock()
	return sharedWorkspace.promptText
}

// InvalidateFile drops the cached token count for a changed file so the next
// recompute reads it again.
func (sharedWorkspace *Workspace) InvalidateFile(absolutePath string) {
	sharedWorkspace.tokenCache.Invalidate(absolutePath)
}

// TotalTokens reports the sum of cached file tokens and prompt tokens.
func (sharedWorkspace *Workspace) TotalTokens() int {
	sharedWorkspace.mutex.Lock()
	promptTokens := sharedWorkspace.promptTokens
	sharedWorkspace.mutex.Unlock()
	return sharedWorkspace.tokenCache.Total() + promptTokens
}

// SelectedCount reports how many files are currently selected.
func (sharedWorkspace *Workspace) SelectedCount() int {
	sharedWorkspace.mutex.Lock()
	defer sharedWorkspace.mutex.Unlock()
	return sharedWorkspace.selectionModel.Count()
}

// Roots returns the loaded root paths in load order.
func (sharedWorkspace *Workspace) Roots() []string {
	sharedWorkspace.mutex.Lock()
	defer sharedWorkspace.mutex.Unlock()
	return append([]string{}, sharedWorkspace.rootOrder...)
}

// Tree returns the scanned tree for a loaded root.
func (sharedWorkspace *Workspace) Tree(rootPath string) (*types.FileTreeNode, bool) {
	absoluteRoot, absoluteError := filepath.Abs(rootPath)
	if absoluteError != nil {
		return nil, false
	}
	sharedWorkspace.mutex.Lock()
	defer sharedWorkspace.mutex.Unlock()
	rootNode, loaded := sharedWorkspace.trees[absoluteRoot]
	return rootNode, loaded
}

// FileTokens returns the cached token count for a file, computing it in the
// background on a miss.
func (sharedWorkspace *Workspace) FileTokens(absolutePath string) (int, bool) {
	return sharedWorkspace.tokenCache.GetOrCompute(absolutePath)
}

// ExportFiles returns the selected files in sorted path order with display
// paths rooted at the owning root's base name.
func (sharedWorkspace *Workspace) ExportFiles() []types.ExportFile {
	sharedWorkspace.mutex.Lock()
	defer sharedWorkspace.mutex.Unlock()

	selectedPaths := sharedWorkspace.selectionModel.SelectedPaths()
	exportFiles := make([]types.ExportFile, 0, len(selectedPaths))
	for _, selectedPath := range selectedPaths {
		exportFiles = append(exportFiles, types.ExportFile{
			AbsolutePath: selectedPath,
			DisplayPath:  sharedWorkspace.displayPathLocked(selectedPath),
		})
	}
	sort.Slice(exportFiles, func(first, second int) bool {
		return exportFiles[first].DisplayPath < exportFiles[second].DisplayPath
	})
	return exportFiles
}

// Export assembles the prompt and every selected file into the final payload.
func (sharedWorkspace *Workspace) Export(ctx context.Context) (string, error) {
	exportFiles := sharedWorkspace.ExportFiles()
	return export.Assemble(ctx, sharedWorkspace.PromptText(), exportFiles)
}

func (sharedWorkspace *Workspace) displayPathLocked(absolutePath string) string {
	for _, rootPath := range sharedWorkspace.rootOrder {
		if !utils.HasPathPrefix(absolutePath, rootPath) {
			continue
		}
		relativePath, relativeError := filepath.Rel(rootPath, absolutePath)
		if relativeError != nil {
			continue
		}
		return filepath.ToSlash(filepath.Join(filepath.Base(rootPath), relativePath))
	}
	return filepath.ToSlash(absolutePath)
}

func (sharedWorkspace *Workspace) findNodeLocked(absolutePath string) *types.FileTreeNode {
	for _, rootPath := range sharedWorkspace.rootOrder {
		rootNode := sharedWorkspace.trees[rootPath]
		if rootNode == nil {
			continue
		}
		if found := findNode(rootNode, absolutePath); found != nil {
			return found
		}
	}
	return nil
}

func findNode(node *types.FileTreeNode, targetPath string) *types.FileTreeNode {
	if node.Path == targetPath {
		return node
	}
	if !node.IsDirectory || !utils.HasPathPrefix(targetPath, node.Path) {
		return nil
	}
	for _, child := range node.Children {
		if found := findNode(child, targetPath); found != nil {
			return found
		}
	}
	return nil
}

func (sharedWorkspace *Workspace) notifyTotalChanged() {
	if sharedWorkspace.onTotalChanged != nil {
		sharedWorkspace.onTotalChanged(sharedWorkspace.TotalTokens())
	}
}
