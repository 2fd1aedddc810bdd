package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(testingHandle *testing.T, arguments ...string) (string, error) {
	testingHandle.Helper()
	testingHandle.Setenv("HOME", testingHandle.TempDir())
	command := createRootCommand()
	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetArgs(arguments)
	executionError := command.Execute()
	return outputBuffer.String(), executionError
}

func writeFixtureFile(testingHandle *testing.T, filePath string, contents string) {
	testingHandle.Helper()
	if makeDirError := os.MkdirAll(filepath.Dir(filePath), 0o755); makeDirError != nil {
		testingHandle.Fatalf("create directory: %v", makeDirError)
	}
	if writeError := os.WriteFile(filePath, []byte(contents), 0o644); writeError != nil {
		testingHandle.Fatalf("write file: %v", writeError)
	}
}

func TestTreeCommandRendersFilteredTree(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "main.go"), "package main\n")
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, ".gitignore"), "*.log\n")
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "debug.log"), "noise\n")
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "node_modules", "dep.js"), "dep\n")

	output, executionError := runCommand(testingHandle, "tree", rootDirectory)
	if executionError != nil {
		testingHandle.Fatalf("tree command: %v", executionError)
	}
	if !strings.Contains(output, "main.go (13b)") {
		testingHandle.Fatalf("expected main.go with its size in output: %q", output)
	}
	if !strings.Contains(output, "debug.log (gitignored)") {
		testingHandle.Fatalf("expected gitignored tag in output: %q", output)
	}
	if strings.Contains(output, "node_modules") {
		testingHandle.Fatalf("expected node_modules to be omitted: %q", output)
	}
}

func TestTreeCommandWithTokensAnnotatesFiles(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "notes.txt"), "seven words of note content right here\n")

	output, executionError := runCommand(testingHandle, "tree", "--tokens", rootDirectory)
	if executionError != nil {
		testingHandle.Fatalf("tree command: %v", executionError)
	}
	if !strings.Contains(output, "notes.txt (39b, ") || !strings.Contains(output, "tokens)") {
		testingHandle.Fatalf("expected size and token annotation in output: %q", output)
	}
}

func TestExportCommandEmitsPayload(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "main.go"), "package main\n")

	output, executionError := runCommand(testingHandle, "export", "--prompt", "Explain this", rootDirectory)
	if executionError != nil {
		testingHandle.Fatalf("export command: %v", executionError)
	}
	if !strings.Contains(output, "<prompt>\nExplain this\n</prompt>") {
		testingHandle.Fatalf("expected prompt block in output: %q", output)
	}
	if !strings.Contains(output, "## "+filepath.Base(rootDirectory)+"/main.go") {
		testingHandle.Fatalf("expected file heading in output: %q", output)
	}
}

func TestExportCommandWritesOutputFile(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "main.go"), "package main\n")
	outputPath := filepath.Join(testingHandle.TempDir(), "payload.txt")

	output, executionError := runCommand(testingHandle, "export", "--output", outputPath, rootDirectory)
	if executionError != nil {
		testingHandle.Fatalf("export command: %v", executionError)
	}
	if !strings.Contains(output, outputPath) {
		testingHandle.Fatalf("expected confirmation naming %s: %q", outputPath, output)
	}
	payloadBytes, readError := os.ReadFile(outputPath)
	if readError != nil {
		testingHandle.Fatalf("read payload file: %v", readError)
	}
	if !strings.Contains(string(payloadBytes), "<codebase>") {
		testingHandle.Fatalf("expected codebase block in payload file: %q", string(payloadBytes))
	}
}

func TestExportCommandRejectsConflictingPromptFlags(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	if _, executionError := runCommand(testingHandle, "export", "--prompt", "a", "--prompt-file", "b.txt", rootDirectory); executionError == nil {
		testingHandle.Fatal("expected conflicting prompt flags to fail")
	}
}

func TestTokensCommandReportsTotals(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "one.txt"), "alpha beta gamma delta\n")
	writeFixtureFile(testingHandle, filepath.Join(rootDirectory, "two.txt"), "epsilon zeta eta theta\n")

	output, executionError := runCommand(testingHandle, "tokens", rootDirectory)
	if executionError != nil {
		testingHandle.Fatalf("tokens command: %v", executionError)
	}
	if !strings.Contains(output, "2 files,") {
		testingHandle.Fatalf("expected file count in output: %q", output)
	}
	if !strings.Contains(output, "tokens so far:") {
		testingHandle.Fatalf("expected batch progress in output: %q", output)
	}
}

func TestRootsAddListRemoveRoundTrip(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	configPath := filepath.Join(testingHandle.TempDir(), "askrepo.yaml")

	if _, executionError := runCommand(testingHandle, "roots", "add", "--config", configPath, rootDirectory); executionError != nil {
		testingHandle.Fatalf("roots add: %v", executionError)
	}
	listOutput, listError := runCommand(testingHandle, "roots", "list", "--config", configPath)
	if listError != nil {
		testingHandle.Fatalf("roots list: %v", listError)
	}
	if !strings.Contains(listOutput, rootDirectory) {
		testingHandle.Fatalf("expected persisted root in list: %q", listOutput)
	}

	if _, executionError := runCommand(testingHandle, "roots", "remove", "--yes", "--config", configPath, rootDirectory); executionError != nil {
		testingHandle.Fatalf("roots remove: %v", executionError)
	}
	listOutput, listError = runCommand(testingHandle, "roots", "list", "--config", configPath)
	if listError != nil {
		testingHandle.Fatalf("roots list after remove: %v", listError)
	}
	if strings.Contains(listOutput, rootDirectory) {
		testingHandle.Fatalf("expected root to be gone from list: %q", listOutput)
	}
}

func TestRootsRemoveUnknownRootFails(testingHandle *testing.T) {
	configPath := filepath.Join(testingHandle.TempDir(), "askrepo.yaml")
	if _, executionError := runCommand(testingHandle, "roots", "remove", "--yes", "--config", configPath, "/nonexistent"); executionError == nil {
		testingHandle.Fatal("expected removing an unknown root to fail")
	}
}
