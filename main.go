package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"office-translator/internal/config"
	"office-translator/internal/logger"
	"office-translator/internal/pipeline"
	"office-translator/internal/translator"
	"office-translator/internal/types"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

//go:embed all:frontend/dist
var assets embed.FS

// Command line flags
var (
	fileFlag     = flag.String("file", "", "Document to translate (xlsx/docx/pptx/pdf)")
	langFlag     = flag.String("lang", "", "Target language (e.g. Vietnamese, French, Japanese)")
	outputFlag   = flag.String("output", "", "Output file path (default: same directory, language prefix)")
	describeFlag = flag.String("describe", "", "Short description of the document, used as translation context")
	cliFlag      = flag.Bool("cli", false, "Run in CLI mode without GUI")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("Office Translator - 保留格式翻译 Office 文档 (xlsx/docx/pptx/pdf)")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  office-translator [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  --file <PATH>      要翻译的文档路径 (xlsx/docx/pptx/pdf)")
	fmt.Println("  --lang <LANG>      目标语言 (Vietnamese, English, French, German, Spanish, Chinese, Japanese)")
	fmt.Println("  --output <PATH>    输出文件路径 (默认与输入同目录，文件名加语言前缀)")
	fmt.Println("  --describe <TEXT>  文档内容说明，作为翻译上下文")
	fmt.Println("  --cli              命令行模式运行 (不启动 GUI)")
	fmt.Println("  -h, --help         显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  office-translator                                            # 启动 GUI 界面")
	fmt.Println("  office-translator --file report.xlsx --lang Vietnamese --cli")
	fmt.Println("  office-translator --file slides.pptx --lang Japanese --describe \"季度业务汇报\" --cli")
	fmt.Println("  office-translator --file paper.pdf --lang French --output /tmp/paper_fr.pdf --cli")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  如果不提供任何参数，程序将启动图形界面。")
	fmt.Println("  GUI 模式下提供 --file 和 --lang 时会自动开始翻译。")
	fmt.Println("  翻译失败的文本段会保留原文，结束后列出未翻译的位置供人工复核。")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *cliFlag {
		runTranslationCLI(*fileFlag, *langFlag, *outputFlag, *describeFlag)
		return
	}

	// GUI mode
	if err := logger.Init(logger.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 日志初始化失败: %v\n", err)
	}
	defer logger.Close()

	app := NewApp()
	app.SetWailsRuntime(true)

	// Wrap the startup function to handle command line input
	startupFunc := func(ctx context.Context) {
		app.startup(ctx)

		// If a file was passed on the command line, start translating right away
		if *fileFlag != "" && *langFlag != "" {
			go func() {
				if _, err := app.Translate(*fileFlag, *langFlag); err != nil {
					fmt.Fprintf(os.Stderr, "翻译失败: %v\n", err)
				}
			}()
		}
	}

	err := wails.Run(&options.App{
		Title:  "文档翻译",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        startupFunc,
		OnShutdown:       app.shutdown,
		OnBeforeClose: func(ctx context.Context) (prevent bool) {
			// Check if there's a translation task in progress
			if app.IsProcessing() {
				result, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
					Type:          runtime.QuestionDialog,
					Title:         "确认退出",
					Message:       "翻译任务正在进行中，确定要退出吗？\n退出后当前任务将被取消。",
					Buttons:       []string{"取消", "退出"},
					DefaultButton: "取消",
					CancelButton:  "取消",
				})
				if err != nil {
					return false
				}
				if result == "取消" {
					return true
				}
				app.CancelTranslation()
			}
			return false
		},
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		logger.Error("failed to run application", err)
	}
}

// runTranslationCLI translates one document in CLI mode without GUI.
func runTranslationCLI(filePath, lang, outputPath, describe string) {
	// Initialize logger with console output for CLI mode
	logger.Init(&logger.Config{
		LogFilePath:   "office-translator-cli.log",
		Level:         logger.LevelInfo,
		EnableConsole: true,
	})
	defer logger.Close()

	if filePath == "" || lang == "" {
		fmt.Fprintln(os.Stderr, "错误: CLI 模式需要 --file 和 --lang 参数")
		fmt.Println()
		printHelp()
		os.Exit(1)
	}

	fmt.Println("=== 文档翻译 (CLI 模式) ===")
	fmt.Printf("输入文件: %s\n", filePath)
	fmt.Printf("目标语言: %s\n", lang)

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 无法读取文件: %v\n", err)
		os.Exit(1)
	}

	// Load configuration for API key, model and batching settings
	configMgr, err := config.NewConfigManager("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 无法创建配置: %v\n", err)
		os.Exit(1)
	}
	if err := configMgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := configMgr.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		fmt.Fprintf(os.Stderr, "请在配置文件中设置 API 密钥: %s\n", configMgr.GetConfigPath())
		fmt.Fprintf(os.Stderr, "或设置环境变量 %s\n", config.EnvOpenAIAPIKey)
		os.Exit(1)
	}

	fmt.Printf("API Base URL: %s\n", configMgr.GetBaseURL())
	fmt.Printf("Model: %s\n", configMgr.GetModel())

	// A description given on the command line overrides the configured one
	fileDescription := configMgr.GetFileDescription()
	if describe != "" {
		fileDescription = describe
	}

	client, err := translator.NewClient(context.Background(), translator.Config{
		APIKey:          configMgr.GetAPIKey(),
		BaseURL:         configMgr.GetBaseURL(),
		Model:           configMgr.GetModel(),
		MaxRetries:      configMgr.GetMaxRetries(),
		RequestInterval: configMgr.GetRequestInterval(),
		FileDescription: fileDescription,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("正在翻译...")
	startTime := time.Now()

	lastResolved := -1
	progress := func(e types.ProgressEvent) {
		if e.Phase != types.PhaseTranslating || e.Total == 0 || e.Resolved == lastResolved {
			return
		}
		lastResolved = e.Resolved
		fmt.Printf("  [%d/%d] 已处理，失败 %d\n", e.Resolved, e.Total, e.Failed)
	}

	result, err := pipeline.New(client).Run(context.Background(), pipeline.Options{
		Data:     data,
		Filename: filepath.Base(filePath),
		Language: lang,
		Progress: progress,
		Limits: pipeline.BatchLimits{
			MaxChars: configMgr.GetMaxBatchChars(),
			MaxUnits: configMgr.GetMaxBatchUnits(),
		},
		Concurrency: configMgr.GetConcurrency(),
		PDFFontName: configMgr.GetPDFFontName(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n错误: 翻译失败: %v\n", err)
		os.Exit(1)
	}

	// Default output: same directory as the input, language-prefixed name
	if outputPath == "" {
		parsed, _ := types.ParseLanguage(lang)
		outputPath = filepath.Join(filepath.Dir(filePath),
			fmt.Sprintf("(%s)_%s", parsed, filepath.Base(filePath)))
	}
	if err := os.WriteFile(outputPath, result.Output, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "错误: 无法写入输出文件: %v\n", err)
		os.Exit(1)
	}

	report := result.Report
	fmt.Println()
	fmt.Println("=== 翻译完成 ===")
	fmt.Printf("输出文件:    %s\n", outputPath)
	fmt.Printf("文本段总数:  %d\n", report.TotalUnits)
	fmt.Printf("翻译成功:    %d\n", report.Translated)
	fmt.Printf("失败:        %d\n", report.Failed)
	fmt.Printf("跳过:        %d\n", report.Skipped)
	fmt.Printf("总耗时:      %v\n", time.Since(startTime).Round(time.Second))

	if len(report.Warnings) > 0 {
		fmt.Println("\n=== 警告 ===")
		for i, w := range report.Warnings {
			fmt.Printf("%d. %s\n", i+1, w)
		}
	}

	if len(report.UntranslatedLocations) > 0 {
		fmt.Println("\n=== 未翻译的位置（保留原文）===")
		locations := report.UntranslatedLocations
		const maxShown = 20
		for i, loc := range locations {
			if i >= maxShown {
				fmt.Printf("... 还有 %d 处\n", len(locations)-maxShown)
				break
			}
			fmt.Printf("  %s\n", loc)
		}
	}

	if report.Failed > 0 {
		// Partial result still counts as success, the document was produced
		fmt.Println("\n部分文本翻译失败，已保留原文。")
	}
}
