// Command cqasm is a CLI front end over the cqasm package: check source
// files, print their analyzed tree or diagnostics, or serve analysis to an
// editor over the Language Server Protocol.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"cqasm"
	"cqasm/internal/lspserver"
	"cqasm/internal/regstore"
	"cqasm/internal/version"
)

const versionString = "0.1.0"

var commandAliases = map[string]string{
	"c": "check",
	"a": "analyze",
	"l": "lsp",
	"s": "serve",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("cqasm %s\n", versionString)
	case "check":
		checkCommand(args[1:])
	case "analyze":
		analyzeCommand(args[1:])
	case "lsp":
		lspCommand()
	case "serve":
		serveCommand(args[1:])
	case "registry":
		registryCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "cqasm: unknown command %q\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("cqasm - cQASM language front end")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cqasm check <file>              Parse and analyze a file, print diagnostics     (alias: c)")
	fmt.Println("  cqasm analyze <file> [--json]   Analyze a file and print its semantic tree       (alias: a)")
	fmt.Println("  cqasm lsp                       Start a stdio Language Server Protocol session   (alias: l)")
	fmt.Println("  cqasm serve <addr>               Start a stdio LSP session that also pushes diagnostics to websocket subscribers at addr   (alias: s)")
	fmt.Println("  cqasm registry <dsn> info        Show counts of persisted overloads in a store")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --dialect=v1|v3     select the parsing dialect (default v3)")
	fmt.Println("  --max-version=M.N   reject files whose version header exceeds this (default 3.0)")
	fmt.Println()
	fmt.Println("  cqasm --version     Show version")
	fmt.Println("  cqasm help          Show this message")
}

func parseCommonFlags(args []string) (dialectFlag, maxVersionFlag string, rest []string) {
	dialectFlag = "v3"
	maxVersionFlag = "3.0"
	for _, a := range args {
		switch {
		case hasPrefix(a, "--dialect="):
			dialectFlag = a[len("--dialect="):]
		case hasPrefix(a, "--max-version="):
			maxVersionFlag = a[len("--max-version="):]
		default:
			rest = append(rest, a)
		}
	}
	return
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func resolveDialect(flag string) cqasm.Dialect {
	if flag == "v1" {
		return cqasm.V1
	}
	return cqasm.V3
}

func resolveMaxVersion(flag string) version.Version {
	v, err := version.ParseSpec(flag)
	if err != nil {
		log.Fatalf("cqasm: invalid --max-version %q: %v", flag, err)
	}
	return v
}

func checkCommand(args []string) {
	dialectFlag, maxVersionFlag, rest := parseCommonFlags(args)
	if len(rest) < 1 {
		log.Fatal("cqasm check: a file argument is required")
	}
	filename := rest[0]

	result, err := cqasm.AnalyzeFile(resolveDialect(dialectFlag), resolveMaxVersion(maxVersionFlag), filename)
	if err != nil {
		log.Fatalf("cqasm: %v", err)
	}

	items := result.Errors.Items()
	if len(items) == 0 {
		fmt.Printf("%s: no issues found\n", filename)
		return
	}

	colorize := isatty.IsTerminal(os.Stdout.Fd())
	for _, d := range items {
		printDiagnostic(filename, d.Error(), colorize)
	}
	fmt.Printf("\n%s: %s\n", filename, humanize.Comma(int64(len(items)))+" diagnostic(s)")
	os.Exit(1)
}

func printDiagnostic(filename, message string, colorize bool) {
	if colorize {
		fmt.Printf("\x1b[31m%s\x1b[0m: %s\n", filename, message)
		return
	}
	fmt.Printf("%s: %s\n", filename, message)
}

func analyzeCommand(args []string) {
	dialectFlag, maxVersionFlag, rest := parseCommonFlags(args)
	asJSON := false
	var files []string
	for _, a := range rest {
		if a == "--json" {
			asJSON = true
			continue
		}
		files = append(files, a)
	}
	if len(files) < 1 {
		log.Fatal("cqasm analyze: a file argument is required")
	}
	filename := files[0]

	d := resolveDialect(dialectFlag)
	maxVersion := resolveMaxVersion(maxVersionFlag)

	if asJSON {
		out, err := cqasm.AnalyzeFileToJSON(d, maxVersion, filename)
		if err != nil {
			log.Fatalf("cqasm: %v", err)
		}
		fmt.Println(out)
		return
	}

	lines, err := cqasm.AnalyzeFileToStrings(d, maxVersion, filename)
	if err != nil {
		log.Fatalf("cqasm: %v", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}

func lspCommand() {
	server := lspserver.New(os.Stdin, os.Stdout, cqasm.V3, version.Version{Components: []int{3, 0}}, nil)
	if err := server.Start(context.Background()); err != nil {
		log.Fatalf("cqasm lsp: %v", err)
	}
}

// serveCommand runs the same stdio JSON-RPC loop as lspCommand, additionally
// fanning every diagnostics publish out to websocket subscribers at addr —
// a browser preview or a second editor pane watching the same session.
func serveCommand(args []string) {
	if len(args) < 1 {
		log.Fatal("cqasm serve: a listen address is required, e.g. :8080")
	}
	addr := args[0]
	hub := lspserver.NewHub()

	go func() {
		fmt.Fprintf(os.Stderr, "cqasm: serving websocket diagnostics on %s\n", addr)
		if err := lspserver.ListenAndServeWebsocket(addr, hub); err != nil {
			log.Fatalf("cqasm serve: %v", err)
		}
	}()

	server := lspserver.New(os.Stdin, os.Stdout, cqasm.V3, version.Version{Components: []int{3, 0}}, hub)
	if err := server.Start(context.Background()); err != nil {
		log.Fatalf("cqasm serve: %v", err)
	}
}

func registryCommand(args []string) {
	if len(args) < 2 || args[1] != "info" {
		log.Fatal("cqasm registry: usage is 'cqasm registry <dsn> info'")
	}
	dsn := args[0]

	ctx := context.Background()
	store, err := regstore.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("cqasm registry: %v", err)
	}
	defer store.Close()

	info, err := store.Info(ctx)
	if err != nil {
		log.Fatalf("cqasm registry: %v", err)
	}
	fmt.Println(info)
}
