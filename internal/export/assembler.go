// Package export assembles the final prompt/codebase document. File contents
// are read concurrently in unordered fashion and emitted strictly in the
// caller-supplied order once every read has finished.
package export

import (
	"bytes"
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"github.com/askrepo/askrepo/internal/types"
)

const (
	promptOpenTag    = "<prompt>"
	promptCloseTag   = "</prompt>"
	codebaseOpenTag  = "<codebase>"
	codebaseCloseTag = "</codebase>"
	codeFence        = "```"

	// SuggestedExportFileName is offered to the save dialog collaborator.
	SuggestedExportFileName = "askrepo-export.txt"
)

// Result carries the outcome of an asynchronous assembly.
type Result struct {
	Document string
	Err      error
}

// Assemble reads every requested file concurrently and concatenates the
// prompt and the obtained contents deterministically. Files that cannot be
// read or decoded as text are silently omitted; they never abort the export
// or appear as empty sections. An empty prompt and file list yield the empty
// string.
func Assemble(ctx context.Context, promptText string, files []types.ExportFile) (string, error) {
	contentsByIndex := make([]*string, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	for fileIndex, exportFile := range files {
		fileIndex, exportFile := fileIndex, exportFile
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			content, readError := readTextContent(exportFile.AbsolutePath)
			if readError != nil {
				return nil
			}
			contentsByIndex[fileIndex] = &content
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return "", waitError
	}

	var builder strings.Builder
	trimmedPrompt := strings.TrimSpace(promptText)
	if trimmedPrompt != "" {
		builder.WriteString(promptOpenTag)
		builder.WriteString("\n")
		builder.WriteString(trimmedPrompt)
		builder.WriteString("\n")
		builder.WriteString(promptCloseTag)
		builder.WriteString("\n\n")
	}
	if len(files) > 0 {
		builder.WriteString(codebaseOpenTag)
		builder.WriteString("\n")
		for fileIndex, exportFile := range files {
			content := contentsByIndex[fileIndex]
			if content == nil {
				continue
			}
			builder.WriteString("## ")
			builder.WriteString(exportFile.DisplayPath)
			builder.WriteString("\n\n")
			builder.WriteString(codeFence)
			builder.WriteString("\n")
			builder.WriteString(*content)
			builder.WriteString("\n")
			builder.WriteString(codeFence)
			builder.WriteString("\n\n")
		}
		builder.WriteString(codebaseCloseTag)
	}
	return builder.String(), nil
}

// AssembleAsync runs Assemble on a background goroutine and delivers the
// result on the returned channel.
func AssembleAsync(ctx context.Context, promptText string, files []types.ExportFile) <-chan Result {
	resultChannel := make(chan Result, 1)
	go func() {
		defer close(resultChannel)
		document, assembleError := Assemble(ctx, promptText, files)
		select {
		case <-ctx.Done():
		case resultChannel <- Result{Document: document, Err: assembleError}:
		}
	}()
	return resultChannel
}

// readTextContent loads a file and decodes it as UTF-8, falling back to a
// single-byte encoding. Content that still cannot be treated as text is
// reported as a typed error so the caller can omit the file.
func readTextContent(absolutePath string) (string, error) {
	data, readError := os.ReadFile(absolutePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return "", types.NewError(types.ErrorKindFileNotFound, absolutePath, readError)
		}
		if os.IsPermission(readError) {
			return "", types.NewError(types.ErrorKindAccessDenied, absolutePath, readError)
		}
		return "", types.NewError(types.ErrorKindUnreadableFile, absolutePath, readError)
	}
	return decodeText(absolutePath, data)
}

// decodeText attempts UTF-8 first and ISO 8859-1 second. Data with embedded
// null bytes is rejected outright since no text encoding applies.
func decodeText(absolutePath string, data []byte) (string, error) {
	if bytes.IndexByte(data, 0x00) >= 0 {
		return "", types.NewError(types.ErrorKindEncodingFailure, absolutePath, nil)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, decodeError := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if decodeError != nil {
		return "", types.NewError(types.ErrorKindEncodingFailure, absolutePath, decodeError)
	}
	return string(decoded), nil
}
