package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/config"
	"github.com/michaelbrown/skillforge/internal/logging"
	"github.com/michaelbrown/skillforge/internal/sandbox"
)

// maxResultChars bounds the text handed back to the calling agent.
const maxResultChars = 4000

type verdictChecker interface {
	Check(ctx context.Context, req checker.Request, progress *checker.Progress) checker.Verdict
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	policy := cfg.Policy()
	sb, err := sandbox.New(cfg.Sandbox.Driver, policy)
	if err != nil {
		logger.Fatalw("Creating sandbox", "error", err)
	}
	chk := checker.New(checker.Options{
		CompilerPath:  cfg.Checker.Compiler,
		WorkspaceRoot: cfg.Checker.WorkspaceRoot,
		Sandbox:       sb,
		Policy:        policy,
		Logger:        logger,
	})

	s := server.NewMCPServer("skillforge-code-check", "0.1.0")

	s.AddTool(mcp.Tool{
		Name: "code_check",
		Description: "Compile a C program with gcc (C11) and run it against test cases. " +
			`Tests are JSON: {"tests":[{"input":"...","output":"..."}]}. ` +
			"Output is compared after trimming whitespace and normalizing line endings.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "C source code of the whole program",
				},
				"tests": map[string]any{
					"type":        "string",
					"description": `Test spec as JSON text, e.g. {"tests":[{"input":"5","output":"10"}]}`,
				},
			},
			Required: []string{"code", "tests"},
		},
	}, codeCheckHandler(chk))

	if err := server.ServeStdio(s); err != nil {
		logger.Errorw("MCP server error", "error", err)
	}
}

func codeCheckHandler(chk verdictChecker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		code, _ := args["code"].(string)
		tests, err := testsArg(args["tests"])
		if err != nil {
			return errResult("error: " + err.Error()), nil
		}
		if code == "" || tests == "" {
			return errResult("error: 'code' and 'tests' are required"), nil
		}

		v := chk.Check(ctx, checker.Request{Source: code, TestsJSON: tests}, nil)

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: formatVerdict(v)}},
			IsError: v.Status != checker.StatusPassed,
		}, nil
	}
}

// testsArg accepts the test spec as JSON text or as an already-decoded object.
func testsArg(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("encoding tests: %w", err)
		}
		return string(data), nil
	}
}

func formatVerdict(v checker.Verdict) string {
	var out strings.Builder
	fmt.Fprintf(&out, "status: %s\n", v.Status)

	switch {
	case v.CompilationError != "":
		out.WriteString("compilation error:\n" + v.CompilationError)
	case v.TestsTotal == 0:
		out.WriteString(v.Message)
	default:
		fmt.Fprintf(&out, "passed %d of %d tests\n", v.TestsPassed, v.TestsTotal)
		for i, r := range v.TestResults {
			mark := "PASS"
			if !r.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(&out, "#%d %s", i+1, mark)
			if !r.Passed {
				fmt.Fprintf(&out, " input=%q: %s", r.Input, r.ErrorMessage)
			}
			out.WriteString("\n")
		}
	}

	text := strings.TrimRight(out.String(), "\n")
	if len(text) > maxResultChars {
		text = text[:maxResultChars] + "\n... (output truncated)"
	}
	return text
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
