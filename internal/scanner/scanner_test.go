package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/askrepo/askrepo/internal/ignore"
	"github.com/askrepo/askrepo/internal/types"
)

// writeTestFile creates a file with the specified content, failing the test on error.
func writeTestFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// makeTestDirectory creates a directory, failing the test on error.
func makeTestDirectory(testingHandle *testing.T, directoryPath string) {
	testingHandle.Helper()
	if makeDirError := os.MkdirAll(directoryPath, 0o755); makeDirError != nil {
		testingHandle.Fatalf("failed to create %s: %v", directoryPath, makeDirError)
	}
}

// findChild returns the direct child with the given name or nil.
func findChild(node *types.FileTreeNode, childName string) *types.FileTreeNode {
	for _, childNode := range node.Children {
		if childNode.Name == childName {
			return childNode
		}
	}
	return nil
}

// TestValidateRootPathRejections verifies the typed validation errors.
func TestValidateRootPathRejections(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	filePath := filepath.Join(rootDirectory, "plain.txt")
	writeTestFile(testingHandle, filePath, "content")

	testCases := []struct {
		name         string
		path         string
		expectedKind types.ErrorKind
	}{
		{name: "empty path", path: "", expectedKind: types.ErrorKindInvalidPath},
		{name: "parent traversal", path: rootDirectory + "/../escape", expectedKind: types.ErrorKindInvalidPath},
		{name: "control character", path: "bad\x00path", expectedKind: types.ErrorKindInvalidPath},
		{name: "missing directory", path: filepath.Join(rootDirectory, "absent"), expectedKind: types.ErrorKindFileNotFound},
		{name: "file instead of directory", path: filePath, expectedKind: types.ErrorKindNotADirectory},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(subtestHandle *testing.T) {
			_, validationError := ValidateRootPath(testCase.path)
			if validationError == nil {
				subtestHandle.Fatalf("expected validation error for %q", testCase.path)
			}
			if kind := types.KindOf(validationError); kind != testCase.expectedKind {
				subtestHandle.Fatalf("expected kind %s, got %s", testCase.expectedKind, kind)
			}
		})
	}
}

// TestScanGitignoreNegation verifies the *.log / !keep.log scenario: a.log is
// tagged ignored while keep.log and b.txt stay eligible.
func TestScanGitignoreNegation(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ignore.GitIgnoreFileName), "*.log\n!keep.log\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "a.log"), "a")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "keep.log"), "k")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "b.txt"), "b")

	directoryScanner := &Scanner{}
	rootNode, scanError := directoryScanner.Scan(rootDirectory)
	if scanError != nil {
		testingHandle.Fatalf("Scan failed: %v", scanError)
	}

	ignoredLog := findChild(rootNode, "a.log")
	if ignoredLog == nil || ignoredLog.IgnoreReason != types.IgnoreReasonGitignore {
		testingHandle.Fatalf("expected a.log tagged gitignore, got %+v", ignoredLog)
	}
	keptLog := findChild(rootNode, "keep.log")
	if keptLog == nil || keptLog.IsIgnored() {
		testingHandle.Fatalf("expected keep.log to be eligible, got %+v", keptLog)
	}
	textFile := findChild(rootNode, "b.txt")
	if textFile == nil || textFile.IsIgnored() {
		testingHandle.Fatalf("expected b.txt to be eligible, got %+v", textFile)
	}
}

// TestScanGitignoreDirectoryNotRecursed verifies pruning beneath ignored directories.
func TestScanGitignoreDirectoryNotRecursed(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ignore.GitIgnoreFileName), "vendor/\n")
	vendorDirectory := filepath.Join(rootDirectory, "vendor")
	makeTestDirectory(testingHandle, vendorDirectory)
	writeTestFile(testingHandle, filepath.Join(vendorDirectory, "dep.go"), "package dep")

	directoryScanner := &Scanner{}
	rootNode, scanError := directoryScanner.Scan(rootDirectory)
	if scanError != nil {
		testingHandle.Fatalf("Scan failed: %v", scanError)
	}

	vendorNode := findChild(rootNode, "vendor")
	if vendorNode == nil {
		testingHandle.Fatalf("expected vendor node to be retained")
	}
	if vendorNode.IgnoreReason != types.IgnoreReasonGitignore {
		testingHandle.Fatalf("expected vendor tagged gitignore, got %q", vendorNode.IgnoreReason)
	}
	if len(vendorNode.Children) != 0 {
		testingHandle.Fatalf("expected no children beneath ignored directory, got %d", len(vendorNode.Children))
	}
}

// TestScanSystemIgnoreDropsEntry verifies node_modules anywhere is absent from the tree.
func TestScanSystemIgnoreDropsEntry(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	nestedDirectory := filepath.Join(rootDirectory, "web")
	makeTestDirectory(testingHandle, filepath.Join(nestedDirectory, "node_modules"))
	writeTestFile(testingHandle, filepath.Join(nestedDirectory, "index.js"), "x")

	directoryScanner := &Scanner{SystemPolicy: ignore.NewSystemIgnorePolicy([]string{"node_modules/"})}
	rootNode, scanError := directoryScanner.Scan(rootDirectory)
	if scanError != nil {
		testingHandle.Fatalf("Scan failed: %v", scanError)
	}

	webNode := findChild(rootNode, "web")
	if webNode == nil {
		testingHandle.Fatalf("expected web directory in tree")
	}
	if findChild(webNode, "node_modules") != nil {
		testingHandle.Fatalf("expected node_modules to be dropped entirely")
	}
	if findChild(webNode, "index.js") == nil {
		testingHandle.Fatalf("expected index.js to survive")
	}
}

// TestScanNestedGitignoreScopes verifies that nested .gitignore files apply
// relative to their own directory without leaking upward.
func TestScanNestedGitignoreScopes(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	nestedDirectory := filepath.Join(rootDirectory, "sub")
	makeTestDirectory(testingHandle, nestedDirectory)
	writeTestFile(testingHandle, filepath.Join(nestedDirectory, ignore.GitIgnoreFileName), "local.txt\n")
	writeTestFile(testingHandle, filepath.Join(nestedDirectory, "local.txt"), "x")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "local.txt"), "y")

	directoryScanner := &Scanner{}
	rootNode, scanError := directoryScanner.Scan(rootDirectory)
	if scanError != nil {
		testingHandle.Fatalf("Scan failed: %v", scanError)
	}

	rootLevelFile := findChild(rootNode, "local.txt")
	if rootLevelFile == nil || rootLevelFile.IsIgnored() {
		testingHandle.Fatalf("expected root-level local.txt to stay eligible, got %+v", rootLevelFile)
	}
	nestedNode := findChild(rootNode, "sub")
	if nestedNode == nil {
		testingHandle.Fatalf("expected sub directory in tree")
	}
	nestedFile := findChild(nestedNode, "local.txt")
	if nestedFile == nil || nestedFile.IgnoreReason != types.IgnoreReasonGitignore {
		testingHandle.Fatalf("expected nested local.txt tagged gitignore, got %+v", nestedFile)
	}
}

// TestScanOrderingAndBinaryExclusion verifies directories-first ordering and
// the known-binary extension skip.
func TestScanOrderingAndBinaryExclusion(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "zeta"))
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "Alpha"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "beta.txt"), "b")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "aardvark.txt"), "a")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "tool.exe"), "binary")

	directoryScanner := &Scanner{}
	rootNode, scanError := directoryScanner.Scan(rootDirectory)
	if scanError != nil {
		testingHandle.Fatalf("Scan failed: %v", scanError)
	}

	var childNames []string
	for _, childNode := range rootNode.Children {
		childNames = append(childNames, childNode.Name)
	}
	expectedOrder := []string{"Alpha", "zeta", "aardvark.txt", "beta.txt"}
	if len(childNames) != len(expectedOrder) {
		testingHandle.Fatalf("unexpected children: %v", childNames)
	}
	for nameIndex, expectedName := range expectedOrder {
		if childNames[nameIndex] != expectedName {
			testingHandle.Fatalf("unexpected order: got %v want %v", childNames, expectedOrder)
		}
	}
}

// TestScanAsyncDeliversResult verifies the asynchronous form completes.
func TestScanAsyncDeliversResult(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "a.txt"), "a")

	directoryScanner := &Scanner{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case result := <-directoryScanner.ScanAsync(ctx, rootDirectory):
		if result.Err != nil {
			testingHandle.Fatalf("ScanAsync failed: %v", result.Err)
		}
		if result.Root == nil || findChild(result.Root, "a.txt") == nil {
			testingHandle.Fatalf("expected scanned tree with a.txt")
		}
	case <-ctx.Done():
		testingHandle.Fatalf("ScanAsync timed out")
	}
}
