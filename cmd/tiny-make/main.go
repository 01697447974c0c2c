// Command tiny-make is a minimal build driver for small C++ programs: it
// resolves a translation unit's transitive headers and sibling sources,
// picks a host compiler and language standard, compiles and links with
// per-object incremental caching, and runs the result. Grounded on
// original_source/tiny-make.py's CLI and driver loop; flags are defined
// with github.com/spf13/cobra following the pattern in
// tsukumogami-tsuku/cmd/tsuku/search.go.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tiny-make/tiny-make/internal/buildcache"
	"github.com/tiny-make/tiny-make/internal/buildenv"
	"github.com/tiny-make/tiny-make/internal/common"
	"github.com/tiny-make/tiny-make/internal/compiler"
	"github.com/tiny-make/tiny-make/internal/config"
	"github.com/tiny-make/tiny-make/internal/depgraph"
	"github.com/tiny-make/tiny-make/internal/scheduler"
)

// defaultFatalExitCode mirrors the original tool's sys.exit(-1): on POSIX,
// an exit status is truncated to its low 8 bits, so this and Python's -1
// produce the identical observable exit code (255).
const defaultFatalExitCode = -1

// valueFlags are the flags that consume the following token as their
// value, needed to find where the flag+main segment of argv ends: a
// non-flag token that immediately follows one of these belongs to the
// flag, not to the positional main-file search.
var valueFlags = map[string]bool{"-c": true, "--compiler": true, "--link": true}

// splitArgs implements the two-stage positional parsing this CLI needs:
// scan for the first token that is not a flag and is not itself the value
// of a value-taking flag — that token is main_file. Everything up to and
// including it is parsed as flags; everything after is passed to the
// built program untouched.
func splitArgs(args []string) (head, tail []string) {
	i := 0
	for i < len(args) {
		a := args[i]
		if strings.HasPrefix(a, "-") {
			if valueFlags[a] && i+1 < len(args) {
				i += 2
				continue
			}
			i++
			continue
		}
		return args[:i+1], args[i+1:]
	}
	return args, nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, color.RedString(msg))
	os.Exit(defaultFatalExitCode)
}

func fatalErr(err error) {
	fatal(err.Error())
}

func loadLayeredConfig(root string, cliOptimize *bool, cliPrefer *string, cliLinks []string) (config.FileConfig, error) {
	merged := config.FileConfig{}

	global, err := config.Load(buildenv.GlobalConfigPath)
	if err != nil {
		return config.FileConfig{}, err
	}
	merged.Merge(global)

	if userPath := buildenv.UserConfigPath(); userPath != "" {
		user, err := config.Load(userPath)
		if err != nil {
			return config.FileConfig{}, err
		}
		merged.Merge(user)
	}

	local, err := config.Load(filepath.Join(root, buildenv.LocalConfigName))
	if err != nil {
		return config.FileConfig{}, err
	}
	merged.Merge(local)

	merged.Merge(config.FileConfig{Optimize: cliOptimize, Prefer: cliPrefer, Links: cliLinks})

	return merged, nil
}

func writeCompileCommands(comp compiler.Compiler, cfg config.FileConfig, mod *depgraph.Module, cwd string) error {
	var sources []*depgraph.Source
	for _, path := range mod.SourcePaths() {
		if s, ok := mod.FindSource(path); ok {
			sources = append(sources, s)
		}
	}
	entries := compiler.CompileCommands(comp, cfg, sources, cwd)
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode compile_commands.json failed: %w", err)
	}
	return os.WriteFile("compile_commands.json", data, 0644)
}

func main() {
	var (
		flagCompiler    string
		flagDebug       bool
		flagPerformance bool
		flagVerbose     bool
		flagLinks       []string
		flagClear       bool
	)

	root := "."
	head, tail := splitArgs(os.Args[1:])

	var mainFile string
	rootCmd := &cobra.Command{
		Use:           "tiny-make [flags] [main_file [args...]]",
		Short:         "run a tiny c++ program",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				mainFile = args[0]
			}
			return nil
		},
	}
	rootCmd.Flags().StringVarP(&flagCompiler, "compiler", "c", config.DefaultPrefer, "preferred compiler family (g++ or clang++)")
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "run the built program under gdb")
	rootCmd.Flags().BoolVarP(&flagPerformance, "performance", "p", false, "enable -O3 instead of debug flags")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed logging")
	rootCmd.Flags().StringArrayVar(&flagLinks, "link", nil, "link an additional module root (repeatable)")
	rootCmd.Flags().BoolVar(&flagClear, "clear", false, "remove the build cache and exit")
	rootCmd.SetArgs(head)

	if err := rootCmd.Execute(); err != nil {
		fatalErr(err)
	}

	log := common.NewLogger(flagVerbose)

	var cliOptimize *bool
	if rootCmd.Flags().Changed("performance") {
		cliOptimize = &flagPerformance
	}
	var cliPrefer *string
	if rootCmd.Flags().Changed("compiler") {
		cliPrefer = &flagCompiler
	}

	if flagClear {
		if err := buildcache.Clear(buildenv.CacheFilePath(root)); err != nil {
			fatalErr(err)
		}
		os.Exit(0)
	}

	cfg, err := loadLayeredConfig(root, cliOptimize, cliPrefer, flagLinks)
	if err != nil {
		fatalErr(err)
	}

	comp, err := compiler.Discover(cfg.ResolvedPrefer())
	if err != nil {
		fatalErr(err)
	}
	log.Info(1, fmt.Sprintf("using compiler %s (%s)", comp.Path, comp.MaxStdVersion()))

	proj, err := depgraph.NewProject(root, cfg, flagLinks)
	if err != nil {
		fatalErr(err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fatalErr(err)
	}
	if err := writeCompileCommands(comp, cfg, proj.Main, cwd); err != nil {
		fatalErr(err)
	}

	if mainFile == "" {
		os.Exit(0)
	}

	entry, err := proj.FindSource(mainFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can not find source file %q\n", mainFile)
		os.Exit(1)
	}

	cache, err := buildcache.Load(buildenv.CacheFilePath(root))
	if err != nil {
		fatalErr(err)
	}

	exe, err := scheduler.Build(log, cache, comp, cfg, entry)
	if err != nil {
		fatalErr(err)
	}

	absExe, err := filepath.Abs(exe)
	if err != nil {
		fatalErr(err)
	}

	if flagDebug {
		gdbArgs := append([]string{"gdb", "--args", absExe}, tail...)
		color.Green("executing %s", strings.Join(gdbArgs, " "))
		if err := syscall.Exec("/usr/bin/gdb", gdbArgs, os.Environ()); err != nil {
			fatalErr(err)
		}
		return
	}

	runArgs := append([]string{absExe}, tail...)
	color.Green("executing %s", strings.Join(runArgs, " "))
	if err := syscall.Exec(absExe, runArgs, os.Environ()); err != nil {
		fatalErr(err)
	}
}
