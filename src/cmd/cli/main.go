package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"screen-translate-llm/src/bridge"
	"screen-translate-llm/src/config"
	"screen-translate-llm/src/llm"
	"screen-translate-llm/src/logutil"
	"screen-translate-llm/src/messages"
	"screen-translate-llm/src/screenshot"
	"screen-translate-llm/src/settings"
	"screen-translate-llm/src/singleinstance"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath     string
	jsonOutput   bool
	verbose      bool
	apiKeyPath   string
	settingsPath string
	language     string
	copy         bool
}

// env holds the process boundary so tests can replace it.
type env struct {
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer
	newTranslator func(cfg *config.Config) llm.Translator
	client        singleinstance.Client
}

func defaultEnv() *env {
	return &env{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		newTranslator: func(cfg *config.Config) llm.Translator {
			return llm.New(llm.Config{BaseURL: cfg.BaseURL, Timeout: cfg.RequestTimeout()})
		},
		client: singleinstance.NewClient(),
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), defaultEnv())
}

func runWithArgs(args []string, e *env) error {
	if len(args) == 0 {
		args = []string{"translate-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, e)
	cmd.SetArgs(args[1:])
	cmd.SetIn(e.stdin)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "translate-tool",
		Short:         "Translate the text in images with Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.verbose, e.stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.filePath == "" {
				return cmd.Help()
			}
			return runFile(cmd.Context(), *opts, e)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	pf.StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	pf.StringVar(&opts.settingsPath, "settings", "", "Path to the settings file")

	addFileFlags(cmd, opts)
	cmd.AddCommand(newFileCmd(opts, e), newStartCmd(opts, e), newSettingsCmd(opts, e))
	return cmd
}

func addFileFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to an image file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().StringVar(&opts.language, "lang", "", "Target language (defaults to the saved setting)")
}

func newFileCmd(opts *cliOptions, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Translate an image file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.Context(), *opts, e)
		},
	}
	addFileFlags(cmd, opts)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStartCmd(opts *cliOptions, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Ask the running instance for a screen selection and print the translation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), *opts, e)
		},
	}
	cmd.Flags().StringVar(&opts.language, "lang", "", "Target language for this translation only")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Also copy the translation to the clipboard")
	return cmd
}

func newSettingsCmd(opts *cliOptions, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change saved settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := loadSettings(*opts)
			if err != nil {
				return err
			}
			s := store.Get()
			fmt.Fprintf(e.stdout, "file: %s\n", store.Path())
			fmt.Fprintf(e.stdout, "%s: %s\n", settings.KeyAPIKey, displayKey(s.APIKey))
			fmt.Fprintf(e.stdout, "%s: %s\n", settings.KeyModel, s.Model)
			fmt.Fprintf(e.stdout, "%s: %s\n", settings.KeyTargetLanguage, s.TargetLanguage)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a setting (" + strings.Join(settings.Keys(), ", ") + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := loadSettings(*opts)
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "saved %s to %s\n", args[0], store.Path())
			return nil
		},
	})
	return cmd
}

func setupLogging(verbose bool, w io.Writer) {
	if !verbose {
		zap.ReplaceGlobals(zap.NewNop())
		return
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)
	zap.ReplaceGlobals(zap.New(core))
}

func loadSettings(opts cliOptions) (*config.Config, *settings.Store, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		APIKeyPathOverride: opts.apiKeyPath,
		SettingsOverride:   opts.settingsPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := settings.Open(cfg.SettingsFile, settings.Settings{
		APIKey:         cfg.APIKey,
		TargetLanguage: cfg.TargetLanguage,
		Model:          cfg.Model,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func runFile(ctx context.Context, opts cliOptions, e *env) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, store, err := loadSettings(opts)
	if err != nil {
		return err
	}
	params := store.Get().Params()
	if opts.language != "" {
		params.TargetLanguage = opts.language
	}
	zap.L().Debug("config loaded",
		zap.String("model", params.Model),
		zap.String("api_key_path", cfg.APIKeyPath),
		zap.String("settings", store.Path()))
	if params.APIKey == "" {
		return fmt.Errorf("%s not found. Checked key file %q, the %s env var and %s",
			config.APIKeyEnvVar, cfg.APIKeyPath, config.APIKeyEnvVar, store.Path())
	}

	imageData, err := readInput(opts.filePath, e.stdin)
	if err != nil {
		return err
	}
	zap.L().Debug("input read", zap.Int("bytes", len(imageData)))

	ctx, cancel := context.WithCancel(ctx)
	link, err := bridge.Start(ctx, bridge.ServerOptions{
		Capturer:     screenshot.DisplayCapturer{Display: cfg.DisplayIndex},
		Translator:   e.newTranslator(cfg),
		MaxImageEdge: cfg.MaxImageEdge,
		Timeout:      cfg.RequestTimeout(),
	}, nil)
	if err != nil {
		cancel()
		return err
	}
	defer func() {
		cancel()
		link.Wait()
	}()

	start := time.Now()
	resp := link.Client.Request(ctx, "", messages.TranslateImage{ImageData: imageData, TranslationParams: params})
	elapsed := time.Since(start)
	if !resp.Success {
		zap.L().Debug("translation failed", zap.Duration("elapsed", elapsed), zap.String("error", resp.Error))
		return fmt.Errorf("translation failed: %s", resp.Error)
	}
	zap.L().Debug("translation completed", zap.Duration("elapsed", elapsed), zap.Int("chars", len(resp.Translation)))

	return outputResult(e.stdout, TranslationResult{
		Translation:    resp.Translation,
		Source:         opts.filePath,
		TargetLanguage: params.TargetLanguage,
		Model:          params.Model,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Duration:       elapsed.Seconds(),
		CharCount:      len([]rune(resp.Translation)),
	}, opts.jsonOutput)
}

func readInput(filePath string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		info, statErr := os.Stat(filePath)
		if statErr != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, statErr)
		}
		if info.Size() > maxFileSize {
			return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
		}
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(data) == 0 {
		return nil, errors.New("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

func runStart(ctx context.Context, opts cliOptions, e *env) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// .env may move the port range.
	if _, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath}); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	delegated, text, err := e.client.TryStart(ctx, singleinstance.Request{
		TargetLanguage: opts.language,
		Copy:           opts.copy,
	})
	if err != nil {
		return err
	}
	if !delegated {
		return errors.New("no running instance found; start screen-translate-llm first")
	}
	fmt.Fprintln(e.stdout, text)
	return nil
}

func displayKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return logutil.RedactKey(key)
}

type TranslationResult struct {
	Translation    string  `json:"translation"`
	Source         string  `json:"source"`
	TargetLanguage string  `json:"target_language"`
	Model          string  `json:"model"`
	Timestamp      string  `json:"timestamp"`
	Duration       float64 `json:"duration_seconds"`
	CharCount      int     `json:"character_count"`
}

func outputResult(w io.Writer, result TranslationResult, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(w, result.Translation)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path", "lang", "settings"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}
