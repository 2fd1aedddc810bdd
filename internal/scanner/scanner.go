// Package scanner walks directory roots under the layered ignore policy and
// materializes filtered file trees.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/askrepo/askrepo/internal/ignore"
	"github.com/askrepo/askrepo/internal/types"
	"github.com/askrepo/askrepo/internal/utils"
)

const (
	warningReadDirectoryFormat = "Warning: skipping directory %s due to error: %v"
	warningStatEntryFormat     = "Warning: unable to stat %s: %v"
)

// Scanner builds file trees for root directories. The system ignore policy
// applies to every root; gitignore policies are loaded per directory during
// the walk and never leak across roots.
type Scanner struct {
	SystemPolicy *ignore.SystemIgnorePolicy
	// Warn receives non-fatal per-subtree messages. Nil disables reporting.
	Warn func(message string)
}

// ScanResult carries the outcome of an asynchronous scan.
type ScanResult struct {
	Root *types.FileTreeNode
	Err  error
}

// gitignoreScope pairs a loaded policy with the directory its patterns are
// relative to.
type gitignoreScope struct {
	policy        *ignore.GitignorePolicy
	directoryPath string
}

// Scan validates rootPath and materializes the whole filtered subtree
// eagerly. Entries excluded by the system policy are dropped; entries
// excluded by gitignore are retained as tagged leaves and never recursed
// into. A read failure inside a subtree is reported through Warn and yields
// an empty child list for that subtree only.
func (directoryScanner *Scanner) Scan(rootPath string) (*types.FileTreeNode, error) {
	validatedRoot, validationError := ValidateRootPath(rootPath)
	if validationError != nil {
		return nil, validationError
	}

	nameCollator := collate.New(language.Und, collate.IgnoreCase)
	rootNode := &types.FileTreeNode{
		Name:        filepath.Base(validatedRoot.AbsolutePath),
		Path:        validatedRoot.AbsolutePath,
		IsDirectory: true,
	}
	if rootInformation, statError := os.Stat(validatedRoot.AbsolutePath); statError == nil {
		rootNode.LastModified = utils.FormatTimestamp(rootInformation.ModTime())
	}

	rootNode.Children = directoryScanner.scanChildren(validatedRoot.AbsolutePath, validatedRoot.AbsolutePath, nil, nameCollator)
	return rootNode, nil
}

// ScanAsync runs Scan on a background goroutine and delivers the result on
// the returned channel, honoring ctx cancellation.
func (directoryScanner *Scanner) ScanAsync(ctx context.Context, rootPath string) <-chan ScanResult {
	resultChannel := make(chan ScanResult, 1)
	go func() {
		defer close(resultChannel)
		rootNode, scanError := directoryScanner.Scan(rootPath)
		select {
		case <-ctx.Done():
		case resultChannel <- ScanResult{Root: rootNode, Err: scanError}:
		}
	}()
	return resultChannel
}

// scanChildren lists one directory, applies both ignore layers, and recurses
// depth-first into eligible subdirectories. parentScopes carries the
// gitignore policies of every ancestor directory within this root.
func (directoryScanner *Scanner) scanChildren(
	currentDirectoryPath string,
	rootDirectoryPath string,
	parentScopes []gitignoreScope,
	nameCollator *collate.Collator,
) []*types.FileTreeNode {
	activeScopes := parentScopes
	if loadedPolicy := ignore.LoadGitignorePolicy(currentDirectoryPath); loadedPolicy != nil {
		activeScopes = append(append([]gitignoreScope{}, parentScopes...), gitignoreScope{
			policy:        loadedPolicy,
			directoryPath: currentDirectoryPath,
		})
	}

	directoryEntries, readDirectoryError := os.ReadDir(currentDirectoryPath)
	if readDirectoryError != nil {
		directoryScanner.warn(fmt.Sprintf(warningReadDirectoryFormat, currentDirectoryPath, readDirectoryError))
		return nil
	}

	var childNodes []*types.FileTreeNode
	for _, directoryEntry := range directoryEntries {
		entryType := directoryEntry.Type()
		if !entryType.IsRegular() && !entryType.IsDir() {
			// symlinks, sockets, devices
			continue
		}

		childPath := filepath.Join(currentDirectoryPath, directoryEntry.Name())
		isDirectory := directoryEntry.IsDir()
		relativeToRoot := utils.RelativePathOrSelf(childPath, rootDirectoryPath)

		if directoryScanner.SystemPolicy.IsIgnored(relativeToRoot, isDirectory) {
			continue
		}
		if !isDirectory && utils.HasKnownBinaryExtension(directoryEntry.Name()) {
			continue
		}

		childNode := &types.FileTreeNode{
			Name:        directoryEntry.Name(),
			Path:        childPath,
			IsDirectory: isDirectory,
		}
		if entryInformation, infoError := directoryEntry.Info(); infoError == nil {
			childNode.LastModified = utils.FormatTimestamp(entryInformation.ModTime())
			if !isDirectory {
				childNode.SizeBytes = entryInformation.Size()
			}
		} else {
			directoryScanner.warn(fmt.Sprintf(warningStatEntryFormat, childPath, infoError))
		}

		if isIgnoredByGitignore(activeScopes, childPath, isDirectory) {
			childNode.IgnoreReason = types.IgnoreReasonGitignore
			childNodes = append(childNodes, childNode)
			continue
		}

		if isDirectory {
			childNode.Children = directoryScanner.scanChildren(childPath, rootDirectoryPath, activeScopes, nameCollator)
		}
		childNodes = append(childNodes, childNode)
	}

	sortNodes(childNodes, nameCollator)
	return childNodes
}

// isIgnoredByGitignore evaluates every ancestor gitignore policy against the
// candidate, each relative to its own directory. Negation applies within a
// single policy only; across policies any ignoring policy excludes the path.
func isIgnoredByGitignore(scopes []gitignoreScope, candidatePath string, isDirectory bool) bool {
	for _, scope := range scopes {
		relativePath := utils.RelativePathOrSelf(candidatePath, scope.directoryPath)
		if scope.policy.IsIgnored(relativePath, isDirectory) {
			return true
		}
	}
	return false
}

// sortNodes orders directories before files, then by locale-aware
// case-insensitive name comparison.
func sortNodes(nodes []*types.FileTreeNode, nameCollator *collate.Collator) {
	sort.SliceStable(nodes, func(leftIndex, rightIndex int) bool {
		leftNode, rightNode := nodes[leftIndex], nodes[rightIndex]
		if leftNode.IsDirectory != rightNode.IsDirectory {
			return leftNode.IsDirectory
		}
		return nameCollator.CompareString(leftNode.Name, rightNode.Name) < 0
	})
}

func (directoryScanner *Scanner) warn(message string) {
	if directoryScanner.Warn != nil {
		directoryScanner.Warn(message)
	}
}
