package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"braid/internal/evaluator"
	"braid/internal/foreign"
	"braid/internal/log"
	"braid/internal/object"
	"braid/internal/parser"
	"braid/internal/repl"
	"braid/internal/util"
)

var (
	// Injected by the linker at release build time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"

	help       bool
	version    bool
	configPath string
	rootPath   string
	expr       string
	logLevel   string
	logFile    string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.StringVar(&configPath, "config", "", "Path to a braid.toml config file")
	flag.StringVar(&rootPath, "root", "", "Root path for script-relative file access")
	flag.StringVar(&expr, "e", "", "Evaluate the given expression and exit")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (default stderr)")
}

func main() {
	flag.Parse()

	if version {
		fmt.Printf("braid version 'v%s' %s %s\n", Version, BuildDate, Commit)
		return
	}
	if help {
		printHelp()
		return
	}

	cfg := util.Configuration{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
		RootPath:  ".",
		BraidHome: os.Getenv("BRAID_HOME"),
		LogLevel:  "error",
	}
	if err := util.LoadConfiguration(util.ConfigPath(configPath), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "cannot read config: %v\n", err)
		os.Exit(2)
	}
	applyFlagOverrides(&cfg)

	closeLog := log.Setup(cfg.LogLevel, cfg.LogFile)
	defer closeLog()

	// Interrupt cancels the runtime context; running tasks observe it at
	// their next cancellation poll instead of being killed mid-step.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt := evaluator.NewRuntime(ctx)
	env := evaluator.NewGlobalEnv()
	foreign.Install(env)
	foreign.SetRootPath(cfg.RootPath)
	bindScriptArgs(env, flag.Args())

	switch {
	case expr != "":
		os.Exit(runSource(rt, env, "<expr>", expr))
	case flag.Arg(0) != "":
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", flag.Arg(0), err)
			os.Exit(2)
		}
		os.Exit(runSource(rt, env, flag.Arg(0), string(data)))
	default:
		os.Exit(repl.Start(os.Stdin, os.Stdout, rt, env))
	}
}

// applyFlagOverrides lets explicitly set flags win over the config file.
func applyFlagOverrides(cfg *util.Configuration) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.RootPath = rootPath
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-file":
			cfg.LogFile = logFile
		}
	})
}

// bindScriptArgs exposes the command line after the script name as the
// const `args` vector.
func bindScriptArgs(env *object.Environment, argv []string) {
	rest := []string{}
	if len(argv) > 1 {
		rest = argv[1:]
	}
	elements := make([]object.Object, len(rest))
	for i, arg := range rest {
		elements[i] = &object.String{Value: arg}
	}
	env.Declare(&object.Variable{
		Sym:   object.Intern("args"),
		Value: &object.Vector{Elements: elements},
		Const: true,
	})
}

func runSource(rt *evaluator.Runtime, env *object.Environment, file, src string) int {
	rt.File = file

	forms, err := parser.ParseString(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		if ctx := util.SourceContext(src, util.ErrorLine(err.Error())); ctx != "" {
			fmt.Fprint(os.Stderr, ctx)
		}
		return 2
	}

	e := evaluator.New(rt, env)
	switch result := e.EvalProgram(forms).(type) {
	case *object.ExitSignal:
		return result.Code
	case *object.RuntimeError:
		fmt.Fprintln(os.Stderr, result.Render())
		return 1
	case *object.UserException:
		fmt.Fprintf(os.Stderr, "uncaught exception: %s\n", object.Inspect(result.Payload))
		return 1
	default:
		return 0
	}
}

func printHelp() {
	fmt.Printf(`Usage: braid [options] [filename [args...]]

Options:
  -e <expr>          Evaluate the given expression and exit.
  -config <path>     Read settings from the given braid.toml.
  -root <path>       Root path for script-relative file access. Default is '.'
  -log-level <level> Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>   Specify a log file to write logs. Default is stderr.
  -help              Display this help information and exit.
  -version           Display version information and exit.

With no filename braid starts an interactive session.

Examples:
  braid                         Start the REPL
  braid myfile.br               Execute the provided Braid file
  braid myfile.br arg1 arg2     Execute the file; arg1 and arg2 are bound as args
  braid -e '(println (+ 1 2))'  Evaluate one expression

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}
