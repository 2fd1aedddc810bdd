// Package cli provides the command line interface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/askrepo/askrepo/internal/export"
	"github.com/askrepo/askrepo/internal/ignore"
	"github.com/askrepo/askrepo/internal/scanner"
	"github.com/askrepo/askrepo/internal/selection"
	"github.com/askrepo/askrepo/internal/services/clipboard"
	"github.com/askrepo/askrepo/internal/settings"
	"github.com/askrepo/askrepo/internal/tokenizer"
	"github.com/askrepo/askrepo/internal/types"
	"github.com/askrepo/askrepo/internal/utils"
	"github.com/askrepo/askrepo/internal/watch"
	"github.com/askrepo/askrepo/internal/workspace"
)

const (
	configFlagName     = "config"
	versionFlagName    = "version"
	tokensFlagName     = "tokens"
	modelFlagName      = "model"
	promptFlagName     = "prompt"
	promptFileFlagName = "prompt-file"
	outputFlagName     = "output"
	copyFlagName       = "copy"
	watchFlagName      = "watch"
	yesFlagName        = "yes"

	versionTemplate      = "askrepo version: %s\n"
	defaultPath          = "."
	rootUse              = "askrepo"
	rootShortDescription = "askrepo command line interface"
	rootLongDescription  = `askrepo prepares a codebase for LLM prompt consumption.
It scans directory roots through layered ignore rules, accounts tokens for the
selected files, and assembles a single prompt-plus-codebase payload.
Use --version to print the application version.`

	treeUse              = "tree [paths...]"
	exportUse            = "export [paths...]"
	tokensUse            = "tokens [paths...]"
	rootsUse             = "roots"
	rootsAddUse          = "add <path>"
	rootsRemoveUse       = "remove <path>"
	rootsListUse         = "list"
	treeAlias            = "t"
	exportAlias          = "e"
	treeShortDescription = "display the filtered directory tree (" + treeAlias + ")"
	treeLongDescription  = `List directories and files for one or more roots after system and
gitignore filtering. Gitignored entries are tagged; system-ignored entries are
omitted entirely.`
	treeUsageExample = `  # Render the tree with per-file token counts
  askrepo tree --tokens .

  # Use a specific tokenizer model
  askrepo tree --tokens --model gpt-4 ./cmd`

	exportShortDescription = "assemble the prompt and selected files (" + exportAlias + ")"
	exportLongDescription  = `Assemble the export payload for the given roots: the prompt block followed
by every eligible file wrapped in the codebase block. The payload goes to
stdout unless --output or --copy redirect it.`
	exportUsageExample = `  # Export to stdout with an inline prompt
  askrepo export --prompt "Explain the build" .

  # Save to a file and copy to the clipboard
  askrepo export --prompt-file prompt.txt --output export.txt --copy .`

	tokensShortDescription = "count tokens for the eligible files of the roots"
	tokensLongDescription  = `Run bulk token accounting across every eligible file of the given roots,
printing the running total after each committed batch. With --watch the
command keeps running and recounts when files change.`
	tokensUsageExample = `  # One accounting pass over the current directory
  askrepo tokens .

  # Keep watching for changes
  askrepo tokens --watch ./src`

	rootsShortDescription       = "manage the persisted root directories"
	rootsAddShortDescription    = "persist a root directory"
	rootsRemoveShortDescription = "remove a persisted root directory"
	rootsListShortDescription   = "list the persisted root directories"

	configFlagDescription     = "settings file to load and persist to"
	versionFlagDescription    = "display application version"
	tokensFlagDescription     = "include per-file token counts"
	modelFlagDescription      = "tokenizer model to use for token counting"
	promptFlagDescription     = "prompt text to place before the codebase"
	promptFileFlagDescription = "file containing the prompt text"
	outputFlagDescription     = "write the payload to this file instead of stdout"
	copyFlagDescription       = "copy the payload to the system clipboard"
	watchFlagDescription      = "keep running and recount when files change"
	yesFlagDescription        = "skip the removal confirmation"

	gitignoredTagSuffix         = " (gitignored)"
	fileSizeSuffixFormat        = " (%s)"
	fileSizeTokensSuffixFormat  = " (%s, %d tokens)"
	warningSkipPathFormat       = "Warning: skipping %s: %v\n"
	warningTokenCountFormat     = "Warning: failed to count tokens for %s: %v\n"
	warningClipboardFormat      = "Warning: clipboard copy failed: %v\n"
	batchTotalFormat            = "tokens so far: %d\n"
	finalTotalFormat            = "%d files, %d tokens\n"
	savedPayloadFormat          = "payload written to %s\n"
	copiedPayloadMessage        = "payload copied to clipboard"
	rootPersistedFormat         = "root %s persisted\n"
	rootRemovedFormat           = "root %s removed\n"
	rootNotPersistedFormat      = "root %s is not persisted"
	removeRootQuestionFormat    = "Remove persisted root %s?"
	confirmationPromptSuffix    = " [y/N]: "
	conflictingPromptFlags      = "use either --" + promptFlagName + " or --" + promptFileFlagName + ", not both"
	watchStartedFormat          = "watching %d root(s); press Ctrl+C to stop\n"
	errorReadPromptFileFormat   = "read prompt file %s: %w"
	treeDirectoryConnector      = "├── "
	treeLastDirectoryConnector  = "└── "
	treeNestedPrefix            = "│   "
	treeLastNestedPrefix        = "    "
	directoryDisplaySuffix      = "/"
	persistedRootMissingWarning = "Warning: persisted root %s no longer exists\n"
)

// Execute runs the askrepo application.
func Execute() error {
	rootCommand := createRootCommand()
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	var showVersion bool
	var configFilePath string

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&configFilePath, configFlagName, "", configFlagDescription)
	rootCommand.AddCommand(
		createTreeCommand(&configFilePath),
		createExportCommand(&configFilePath),
		createTokensCommand(&configFilePath),
		createRootsCommand(&configFilePath),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func loadSettings(configFilePath string) (settings.Settings, error) {
	return settings.Load(settings.LoadOptions{ExplicitFilePath: configFilePath})
}

// resolveRootPaths prefers explicit arguments, then persisted roots, then the
// working directory.
func resolveRootPaths(arguments []string, loadedSettings settings.Settings) []string {
	if len(arguments) > 0 {
		return arguments
	}
	if len(loadedSettings.Roots) > 0 {
		return append([]string{}, loadedSettings.Roots...)
	}
	return []string{defaultPath}
}

func workspaceOptions(loadedSettings settings.Settings, modelName string) workspace.Options {
	if modelName == "" {
		modelName = loadedSettings.Model
	}
	options := workspace.Options{
		SystemPatterns: loadedSettings.IgnorePatterns,
		Model:          modelName,
		Warn: func(message string) {
			fmt.Fprintln(os.Stderr, message)
		},
	}
	if loadedSettings.BatchSize != nil {
		options.BatchSize = *loadedSettings.BatchSize
	}
	if loadedSettings.DebounceMilliseconds != nil {
		options.QuietPeriod = time.Duration(*loadedSettings.DebounceMilliseconds) * time.Millisecond
	}
	return options
}

// createTreeCommand returns the tree subcommand.
func createTreeCommand(configFilePath *string) *cobra.Command {
	var tokensEnabled bool
	var modelName string

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			loadedSettings, settingsError := loadSettings(*configFilePath)
			if settingsError != nil {
				return settingsError
			}
			var tokenCounter tokenizer.Counter
			if tokensEnabled {
				resolvedModel := modelName
				if resolvedModel == "" {
					resolvedModel = loadedSettings.Model
				}
				counter, _, counterError := tokenizer.NewCounter(tokenizer.Config{Model: resolvedModel})
				if counterError != nil {
					return counterError
				}
				tokenCounter = counter
			}
			directoryScanner := &scanner.Scanner{
				SystemPolicy: systemPolicyFromSettings(loadedSettings),
				Warn: func(message string) {
					fmt.Fprintln(os.Stderr, message)
				},
			}
			for _, rootPath := range resolveRootPaths(arguments, loadedSettings) {
				rootNode, scanError := directoryScanner.Scan(rootPath)
				if scanError != nil {
					return scanError
				}
				renderTree(command.OutOrStdout(), rootNode, "", true, tokenCounter)
			}
			return nil
		},
	}

	treeCommand.Flags().BoolVar(&tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	treeCommand.Flags().StringVar(&modelName, modelFlagName, "", modelFlagDescription)
	return treeCommand
}

// createExportCommand returns the export subcommand.
func createExportCommand(configFilePath *string) *cobra.Command {
	var promptText string
	var promptFilePath string
	var outputPath string
	var copyToClipboard bool
	var modelName string

	exportCommand := &cobra.Command{
		Use:     exportUse,
		Aliases: []string{exportAlias},
		Short:   exportShortDescription,
		Long:    exportLongDescription,
		Example: exportUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if promptText != "" && promptFilePath != "" {
				return fmt.Errorf(conflictingPromptFlags)
			}
			loadedSettings, settingsError := loadSettings(*configFilePath)
			if settingsError != nil {
				return settingsError
			}
			resolvedPrompt := promptText
			if promptFilePath != "" {
				promptBytes, readError := os.ReadFile(promptFilePath)
				if readError != nil {
					return fmt.Errorf(errorReadPromptFileFormat, promptFilePath, readError)
				}
				resolvedPrompt = string(promptBytes)
			}

			sharedWorkspace := workspace.New(workspaceOptions(loadedSettings, modelName))
			for _, rootPath := range resolveRootPaths(arguments, loadedSettings) {
				if _, addError := sharedWorkspace.AddRoot(command.Context(), rootPath); addError != nil {
					return addError
				}
			}
			sharedWorkspace.SetPromptText(resolvedPrompt)

			payload, exportError := sharedWorkspace.Export(command.Context())
			if exportError != nil {
				return exportError
			}
			return deliverPayload(command, payload, outputPath, copyToClipboard)
		},
	}

	exportCommand.Flags().StringVar(&promptText, promptFlagName, "", promptFlagDescription)
	exportCommand.Flags().StringVar(&promptFilePath, promptFileFlagName, "", promptFileFlagDescription)
	exportCommand.Flags().StringVar(&outputPath, outputFlagName, "", outputFlagDescription)
	exportCommand.Flags().BoolVar(&copyToClipboard, copyFlagName, false, copyFlagDescription)
	exportCommand.Flags().StringVar(&modelName, modelFlagName, "", modelFlagDescription)
	return exportCommand
}

// deliverPayload routes the assembled payload to stdout, a file, the
// clipboard, or any combination the flags request.
func deliverPayload(command *cobra.Command, payload string, outputPath string, copyToClipboard bool) error {
	delivered := false
	if outputPath != "" {
		targetPath := outputPath
		if pathInformation, statError := os.Stat(outputPath); statError == nil && pathInformation.IsDir() {
			targetPath = filepath.Join(outputPath, export.SuggestedExportFileName)
		}
		if writeError := os.WriteFile(targetPath, []byte(payload), 0o644); writeError != nil {
			return types.NewError(types.ErrorKindUnknown, targetPath, writeError)
		}
		fmt.Fprintf(command.OutOrStdout(), savedPayloadFormat, targetPath)
		delivered = true
	}
	if copyToClipboard {
		if copyError := clipboard.NewService().Copy(payload); copyError != nil {
			fmt.Fprintf(os.Stderr, warningClipboardFormat, copyError)
		} else {
			fmt.Fprintln(command.OutOrStdout(), copiedPayloadMessage)
		}
		delivered = true
	}
	if !delivered {
		fmt.Fprint(command.OutOrStdout(), payload)
	}
	return nil
}

// createTokensCommand returns the tokens subcommand.
func createTokensCommand(configFilePath *string) *cobra.Command {
	var watchEnabled bool
	var modelName string

	tokensCommand := &cobra.Command{
		Use:     tokensUse,
		Short:   tokensShortDescription,
		Long:    tokensLongDescription,
		Example: tokensUsageExample,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			loadedSettings, settingsError := loadSettings(*configFilePath)
			if settingsError != nil {
				return settingsError
			}
			options := workspaceOptions(loadedSettings, modelName)
			options.OnTotalChanged = func(total int) {
				fmt.Fprintf(command.OutOrStdout(), batchTotalFormat, total)
			}
			sharedWorkspace := workspace.New(options)

			rootPaths := resolveRootPaths(arguments, loadedSettings)
			for _, rootPath := range rootPaths {
				if _, addError := sharedWorkspace.AddRoot(command.Context(), rootPath); addError != nil {
					return addError
				}
			}
			fmt.Fprintf(command.OutOrStdout(), finalTotalFormat, sharedWorkspace.SelectedCount(), sharedWorkspace.TotalTokens())

			if !watchEnabled {
				return nil
			}
			return watchRoots(command, sharedWorkspace)
		},
	}

	tokensCommand.Flags().BoolVar(&watchEnabled, watchFlagName, false, watchFlagDescription)
	tokensCommand.Flags().StringVar(&modelName, modelFlagName, "", modelFlagDescription)
	return tokensCommand
}

// watchRoots blocks recounting tokens whenever a watched root changes, until
// the process is interrupted.
func watchRoots(command *cobra.Command, sharedWorkspace *workspace.Workspace) error {
	treeWatcher, watcherError := watch.NewWatcher(sharedWorkspace, watch.DefaultSettleInterval)
	if watcherError != nil {
		return watcherError
	}
	defer treeWatcher.Close()

	treeWatcher.OnTreeChanged = func() {
		if refreshError := sharedWorkspace.Refresh(context.Background()); refreshError != nil {
			fmt.Fprintf(os.Stderr, warningSkipPathFormat, "refresh", refreshError)
			return
		}
		fmt.Fprintf(command.OutOrStdout(), finalTotalFormat, sharedWorkspace.SelectedCount(), sharedWorkspace.TotalTokens())
	}
	treeWatcher.OnError = func(watchError error) {
		fmt.Fprintln(os.Stderr, watchError)
	}
	loadedRoots := sharedWorkspace.Roots()
	for _, rootPath := range loadedRoots {
		if addError := treeWatcher.AddRoot(rootPath); addError != nil {
			return addError
		}
	}
	fmt.Fprintf(command.OutOrStdout(), watchStartedFormat, len(loadedRoots))

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	<-interrupts
	return nil
}

// createRootsCommand returns the roots subcommand group.
func createRootsCommand(configFilePath *string) *cobra.Command {
	rootsCommand := &cobra.Command{
		Use:   rootsUse,
		Short: rootsShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	rootsCommand.AddCommand(
		createRootsAddCommand(configFilePath),
		createRootsRemoveCommand(configFilePath),
		createRootsListCommand(configFilePath),
	)
	return rootsCommand
}

func createRootsAddCommand(configFilePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   rootsAddUse,
		Short: rootsAddShortDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			validatedPath, validationError := scanner.ValidateRootPath(arguments[0])
			if validationError != nil {
				return validationError
			}
			loadedSettings, settingsError := loadSettings(*configFilePath)
			if settingsError != nil {
				return settingsError
			}
			absolutePath := validatedPath.AbsolutePath
			for _, persistedRoot := range loadedSettings.Roots {
				if persistedRoot == absolutePath {
					fmt.Fprintf(command.OutOrStdout(), rootPersistedFormat, absolutePath)
					return nil
				}
			}
			loadedSettings.Roots = append(loadedSettings.Roots, absolutePath)
			if saveError := saveSettings(*configFilePath, loadedSettings); saveError != nil {
				return saveError
			}
			fmt.Fprintf(command.OutOrStdout(), rootPersistedFormat, absolutePath)
			return nil
		},
	}
}

func createRootsRemoveCommand(configFilePath *string) *cobra.Command {
	var skipConfirmation bool

	removeCommand := &cobra.Command{
		Use:   rootsRemoveUse,
		Short: rootsRemoveShortDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			loadedSettings, settingsError := loadSettings(*configFilePath)
			if settingsError != nil {
				return settingsError
			}
			absolutePath, absoluteError := filepath.Abs(arguments[0])
			if absoluteError != nil {
				return types.NewError(types.ErrorKindInvalidPath, arguments[0], absoluteError)
			}
			remainingRoots := make([]string, 0, len(loadedSettings.Roots))
			found := false
			for _, persistedRoot := range loadedSettings.Roots {
				if persistedRoot == absolutePath {
					found = true
					continue
				}
				remainingRoots = append(remainingRoots, persistedRoot)
			}
			if !found {
				return fmt.Errorf(rootNotPersistedFormat, absolutePath)
			}
			if !skipConfirmation {
				confirmer := standardInputConfirmer(command)
				if !confirmer.Confirm(fmt.Sprintf(removeRootQuestionFormat, absolutePath)) {
					return nil
				}
			}
			loadedSettings.Roots = remainingRoots
			if saveError := saveSettings(*configFilePath, loadedSettings); saveError != nil {
				return saveError
			}
			fmt.Fprintf(command.OutOrStdout(), rootRemovedFormat, absolutePath)
			return nil
		},
	}

	removeCommand.Flags().BoolVar(&skipConfirmation, yesFlagName, false, yesFlagDescription)
	return removeCommand
}

func createRootsListCommand(configFilePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   rootsListUse,
		Short: rootsListShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			loadedSettings, settingsError := loadSettings(*configFilePath)
			if settingsError != nil {
				return settingsError
			}
			for _, persistedRoot := range loadedSettings.Roots {
				if _, statError := os.Stat(persistedRoot); statError != nil {
					fmt.Fprintf(os.Stderr, persistedRootMissingWarning, persistedRoot)
				}
				fmt.Fprintln(command.OutOrStdout(), persistedRoot)
			}
			return nil
		},
	}
}

// standardInputConfirmer asks the question on the command's output stream and
// reads a yes/no answer from stdin.
func standardInputConfirmer(command *cobra.Command) selection.Confirmer {
	return selection.ConfirmerFunc(func(question string) bool {
		fmt.Fprint(command.OutOrStdout(), question+confirmationPromptSuffix)
		inputReader := bufio.NewReader(command.InOrStdin())
		answer, readError := inputReader.ReadString('\n')
		if readError != nil {
			return false
		}
		normalized := strings.ToLower(strings.TrimSpace(answer))
		return normalized == "y" || normalized == "yes"
	})
}

func saveSettings(configFilePath string, updatedSettings settings.Settings) error {
	targetPath := configFilePath
	if targetPath == "" {
		globalPath, pathError := settings.GlobalSettingsPath()
		if pathError != nil {
			return pathError
		}
		targetPath = globalPath
	}
	return settings.Save(targetPath, updatedSettings)
}

func systemPolicyFromSettings(loadedSettings settings.Settings) *ignore.SystemIgnorePolicy {
	return ignore.NewSystemIgnorePolicy(loadedSettings.IgnorePatterns)
}
