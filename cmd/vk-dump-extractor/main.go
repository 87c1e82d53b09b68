package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/detect"
	applog "github.com/Sriram-PR/vk-dump-extractor/pkg/log"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/orchestrate"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(os.Args[2:])
	case "classify":
		runClassify(os.Args[2:])
	case "list-documents":
		runListDocuments(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("vk-dump-extractor %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `vk-dump-extractor - Download the images referenced by a VK archive export

Usage:
  vk-dump-extractor <command> [options]

Commands:
  extract         Extract links from an export file or archive and download the images
  classify        Classify one export file as a photo index or a dialog
  list-documents  List the documents a target resolves to
  validate        Validate configuration file
  mcp-server      Start MCP server for AI tool integration
  version         Show version info

Run 'vk-dump-extractor <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields the built-in defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// sourceFlags are the command-line overrides shared by extract and list-documents
type sourceFlags struct {
	attachmentGirls   *bool
	attachmentBoys    *bool
	chatGirls         *bool
	chatBoys          *bool
	attachmentDirName *string
	dialogDirName     *string
	girlDirName       *string
	boyDirName        *string
	photoFileName     *string
}

func registerSourceFlags(fs *flag.FlagSet) *sourceFlags {
	return &sourceFlags{
		attachmentGirls:   fs.Bool("attachment-girls", false, "Download photos from attachments with girls"),
		attachmentBoys:    fs.Bool("attachment-boys", false, "Download photos from attachments with boys"),
		chatGirls:         fs.Bool("chat-girls", false, "Download photos from dialogs with girls"),
		chatBoys:          fs.Bool("chat-boys", false, "Download photos from dialogs with boys"),
		attachmentDirName: fs.String("attachment-dir-name", "", "Attachment directory name (default "+config.DefaultAttachmentDirName+")"),
		dialogDirName:     fs.String("dialog-dir-name", "", "Dialog directory name (default "+config.DefaultDialogDirName+")"),
		girlDirName:       fs.String("girl-dir-name", "", "Girls directory name (default "+config.DefaultGirlsDirName+")"),
		boyDirName:        fs.String("boy-dir-name", "", "Boys directory name (default "+config.DefaultBoysDirName+")"),
		photoFileName:     fs.String("photo-file-name", "", "Photo list file name (default "+config.DefaultPhotoIndexFileName+")"),
	}
}

// apply overlays the flags on cfg. Include flags only ever switch a source on.
func (f *sourceFlags) apply(cfg *config.AppConfig) {
	cfg.Sources.AttachmentGirls = cfg.Sources.AttachmentGirls || *f.attachmentGirls
	cfg.Sources.AttachmentBoys = cfg.Sources.AttachmentBoys || *f.attachmentBoys
	cfg.Sources.ChatGirls = cfg.Sources.ChatGirls || *f.chatGirls
	cfg.Sources.ChatBoys = cfg.Sources.ChatBoys || *f.chatBoys
	overrideString(&cfg.Sources.AttachmentDirName, *f.attachmentDirName)
	overrideString(&cfg.Sources.DialogDirName, *f.dialogDirName)
	overrideString(&cfg.Sources.GirlsDirName, *f.girlDirName)
	overrideString(&cfg.Sources.BoysDirName, *f.boyDirName)
	overrideString(&cfg.Classifier.PhotoIndexFileName, *f.photoFileName)
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// prepareConfig loads the config, applies overrides and validates it.
// Warnings go to log; a validation error is returned.
func prepareConfig(configPath string, override func(*config.AppConfig), log logrus.FieldLogger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(appCfg)
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// extractOptions carries the parsed extract flags
type extractOptions struct {
	configPath     string
	target         string
	logLevel       string
	threadCount    int
	writeStructure string
	sources        *sourceFlags
}

// runExtract handles the extract subcommand
func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	opts := extractOptions{}
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&opts.target, "target", "", "Export .htm/.html file or archive root directory (required)")
	fs.StringVar(&opts.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.IntVar(&opts.threadCount, "thread-count", 0, fmt.Sprintf("Max concurrent downloads (default %d)", config.DefaultConcurrency))
	fs.StringVar(&opts.writeStructure, "write-structure", "", "Write a tree of the target directory to this file after the run")
	opts.sources = registerSourceFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vk-dump-extractor extract -target PATH [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vk-dump-extractor extract -target ./Archive -chat-girls -chat-boys\n")
		fmt.Fprintf(os.Stderr, "  vk-dump-extractor extract -target ./Archive/Диалоги/Девочки/history_1.htm\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if opts.target == "" {
		fmt.Fprintln(os.Stderr, "Error: -target flag is required.")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "Received signal: %v. Cancelling downloads...\n", sig)
		cancel()

		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "Received second signal. Forcing exit.")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			fmt.Fprintln(os.Stderr, "Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	defer signal.Stop(sigChan)

	exitCode := doExtract(ctx, opts, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doExtract runs the pipeline and prints the summary counts to stdout.
// Returns exit code (0 = run completed, 1 = fatal error).
func doExtract(ctx context.Context, opts extractOptions, stdout, stderr io.Writer) int {
	log := applog.NewLogger(opts.logLevel, stderr)

	appCfg, err := prepareConfig(opts.configPath, func(c *config.AppConfig) {
		if opts.sources != nil {
			opts.sources.apply(c)
		}
		if opts.threadCount > 0 {
			c.Concurrency = opts.threadCount
		}
	}, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logAppConfig(appCfg, log)

	o, err := orchestrate.NewOrchestrator(appCfg, orchestrate.Options{}, applog.Component(log, "extract"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := o.Run(ctx, opts.target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", fatalMessage(err))
		return 1
	}

	fmt.Fprintf(stdout, "Skipped file count: %d\n", result.Summary.Skipped)
	fmt.Fprintf(stdout, "Downloaded file count: %d\n", result.Summary.Downloaded)
	fmt.Fprintf(stdout, "Error file count: %d\n", result.Summary.Failed)

	if opts.writeStructure != "" {
		root := opts.target
		if result.Mode == orchestrate.ModeManual {
			root = filepath.Dir(opts.target)
		}
		labeler := structureLabeler(o.Classifier(), appCfg.PhotoDirName)
		if err := utils.GenerateAndSaveTreeStructure(root, opts.writeStructure, labeler, applog.Component(log, "structure")); err != nil {
			log.Errorf("Failed to generate or save directory structure: %v", err)
		} else {
			log.Infof("Successfully saved directory structure to %s", opts.writeStructure)
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("Run cancelled; unfinished images were counted as errors.")
	}
	return 0
}

// fatalMessage maps fatal run errors to the messages users know from the export tools
func fatalMessage(err error) string {
	switch {
	case errors.Is(err, utils.ErrTargetNotFound):
		return "Target source not exists"
	case errors.Is(err, utils.ErrIncorrectFile):
		return "Incorrect file"
	case errors.Is(err, utils.ErrNoSources):
		return "No sources type"
	case errors.Is(err, utils.ErrUnknownTarget):
		return "Unknown target"
	}
	return err.Error()
}

// structureLabeler lists export documents tagged with their class and downloaded images
func structureLabeler(c *detect.Classifier, photoDirName string) utils.TreeLabeler {
	return func(path string) (string, bool) {
		if filepath.Base(filepath.Dir(path)) == photoDirName {
			return "image", true
		}
		if !utils.IsHTMLFileName(path) {
			return "", false
		}
		return c.ClassifyName(path).String(), true
	}
}

// runClassify handles the classify subcommand
func runClassify(args []string) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	nameOnly := fs.Bool("name-only", false, "Classify by file name only, without reading the file")
	photoFileName := fs.String("photo-file-name", "", "Photo list file name (default "+config.DefaultPhotoIndexFileName+")")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vk-dump-extractor classify [options] FILE...\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	exitCode := doClassify(*configFile, *photoFileName, fs.Args(), !*nameOnly, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doClassify prints "<class>\t<path>" per file.
// Returns exit code (0 = every file classified, 1 = error or unknown class).
func doClassify(configPath, photoFileName string, paths []string, checkContent bool, stdout, stderr io.Writer) int {
	log := applog.NewLogger("warn", stderr)
	appCfg, err := prepareConfig(configPath, func(c *config.AppConfig) {
		overrideString(&c.Classifier.PhotoIndexFileName, photoFileName)
	}, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	classifier, err := detect.NewClassifier(appCfg.Classifier, applog.Component(log, "classifier"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	exitCode := 0
	for _, p := range paths {
		class, err := classifier.Classify(p, checkContent)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %s: %v\n", p, err)
			exitCode = 1
			continue
		}
		if class == models.ClassUnknown {
			exitCode = 1
		}
		fmt.Fprintf(stdout, "%s\t%s\n", class, p)
	}
	return exitCode
}

// runListDocuments handles the list-documents subcommand
func runListDocuments(args []string) {
	fs := flag.NewFlagSet("list-documents", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional)")
	target := fs.String("target", "", "Export .htm/.html file or archive root directory (required)")
	sources := registerSourceFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vk-dump-extractor list-documents -target PATH [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *target == "" {
		fmt.Fprintln(os.Stderr, "Error: -target flag is required.")
		fs.Usage()
		os.Exit(1)
	}

	exitCode := doListDocuments(*configFile, *target, sources, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doListDocuments lists the documents target resolves to.
// Returns exit code (0 = success, 1 = error).
func doListDocuments(configPath, target string, sources *sourceFlags, stdout, stderr io.Writer) int {
	log := applog.NewLogger("warn", stderr)
	appCfg, err := prepareConfig(configPath, func(c *config.AppConfig) {
		if sources != nil {
			sources.apply(c)
		}
	}, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	o, err := orchestrate.NewOrchestrator(appCfg, orchestrate.Options{}, applog.Component(log, "list"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	mode, docs, err := o.ResolveDocuments(target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", fatalMessage(err))
		return 1
	}

	fmt.Fprintf(stdout, "Documents in %s (%s mode):\n\n", target, mode)
	for _, d := range docs {
		fmt.Fprintf(stdout, "  %-11s %s\n", d.Class, d.Path)
	}
	fmt.Fprintf(stdout, "\nTotal file count: %d\n", len(docs))
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vk-dump-extractor validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if !appCfg.Sources.AnyEnabled() {
		fmt.Fprintln(stdout, "NOTE: no source categories enabled; directory targets need include flags")
	}

	fmt.Fprintf(stdout, "OK: concurrency=%d, photo_dir=%s, container_shape=%s, valid_url_trails=%v\n",
		appCfg.Concurrency, appCfg.PhotoDirName, appCfg.ContainerShape, appCfg.ValidURLTrails)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Global Config: Concurrency:%d, MaxReqPerHost:%d, DelayPerHost:%v, ExtractWorkers:%d",
		appCfg.Concurrency, appCfg.MaxRequestsPerHost, appCfg.DelayPerHost, appCfg.ExtractWorkers)
	log.Infof("Global Config Timeouts: SemaphoreAcquire:%v, MaxImageSize:%d bytes",
		appCfg.SemaphoreAcquireTimeout, appCfg.MaxImageSizeBytes)
	log.Infof("Global Config Extraction: PhotoDir:%s, ContainerShape:%s, ValidURLTrails:%v",
		appCfg.PhotoDirName, appCfg.ContainerShape, appCfg.ValidURLTrails)
	log.Infof("Global Config Sources: AttachmentGirls:%t, AttachmentBoys:%t, ChatGirls:%t, ChatBoys:%t",
		appCfg.Sources.AttachmentGirls, appCfg.Sources.AttachmentBoys, appCfg.Sources.ChatGirls, appCfg.Sources.ChatBoys)
	log.Infof("Global Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
}
