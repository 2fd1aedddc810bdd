package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/askrepo/askrepo/internal/tokenizer"
	"github.com/askrepo/askrepo/internal/types"
	"github.com/askrepo/askrepo/internal/utils"
)

// renderTree prints the scanned tree with box-drawing connectors. Gitignored
// entries carry a tag and are not descended into; files are annotated with
// their size, plus a token count when a counter is supplied.
func renderTree(writer io.Writer, node *types.FileTreeNode, prefix string, isRoot bool, tokenCounter tokenizer.Counter) {
	if isRoot {
		fmt.Fprintln(writer, nodeLabel(node, tokenCounter))
	}
	for childIndex, child := range node.Children {
		isLast := childIndex == len(node.Children)-1
		connector := treeDirectoryConnector
		nestedPrefix := prefix + treeNestedPrefix
		if isLast {
			connector = treeLastDirectoryConnector
			nestedPrefix = prefix + treeLastNestedPrefix
		}
		fmt.Fprintln(writer, prefix+connector+nodeLabel(child, tokenCounter))
		if child.IsDirectory && !child.IsIgnored() {
			renderTree(writer, child, nestedPrefix, false, tokenCounter)
		}
	}
}

func nodeLabel(node *types.FileTreeNode, tokenCounter tokenizer.Counter) string {
	label := node.Name
	if node.IsDirectory {
		label += directoryDisplaySuffix
	}
	if node.IsIgnored() {
		return label + gitignoredTagSuffix
	}
	if node.IsDirectory {
		return label
	}
	sizeText := utils.FormatFileSize(node.SizeBytes)
	if tokenCounter != nil && !utils.IsFileBinary(node.Path) {
		countResult, countError := tokenizer.CountFile(tokenCounter, node.Path)
		if countError != nil {
			fmt.Fprintf(os.Stderr, warningTokenCountFormat, node.Path, countError)
		} else if countResult.Counted {
			return label + fmt.Sprintf(fileSizeTokensSuffixFormat, sizeText, countResult.Tokens)
		}
	}
	return label + fmt.Sprintf(fileSizeSuffixFormat, sizeText)
}
