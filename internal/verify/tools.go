package verify

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// MaxToolOutputLength bounds tool output before truncation, protecting
// the prompt budget from a runaway file or command.
const MaxToolOutputLength = 50000

// Tool is a capability the verification agent can invoke while
// investigating a candidate finding.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input string) (string, error)
}

// NewToolRegistry builds the fixed tool set every AgentVerifier offers.
func NewToolRegistry(repo Repository) []Tool {
	return []Tool{
		&ReadFileTool{repo: repo},
		&GrepTool{repo: repo},
		&GlobTool{repo: repo},
		&BashTool{repo: repo},
	}
}

// ReadFileTool reads a single file from the repository.
type ReadFileTool struct {
	repo Repository
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Input: file path (e.g., 'src/main.go')"
}

func (t *ReadFileTool) Execute(ctx context.Context, input string) (string, error) {
	filePath := strings.TrimSpace(input)
	if filePath == "" {
		return "", fmt.Errorf("file path required")
	}
	if err := validatePath(filePath); err != nil {
		return "", err
	}
	content, err := t.repo.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", filePath, err)
	}
	return truncateOutput(string(content)), nil
}

// validatePath rejects absolute paths, traversal, and hidden
// files/directories (.git, .env, ...).
func validatePath(filePath string) error {
	if strings.HasPrefix(filePath, "/") {
		return fmt.Errorf("absolute paths not allowed: %s", filePath)
	}
	cleaned := path.Clean(filePath)
	if strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("path traversal not allowed: %s", filePath)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return fmt.Errorf("hidden files/directories not allowed: %s", filePath)
		}
	}
	return nil
}

// validateGlobPattern rejects absolute/traversal patterns and patterns
// explicitly targeting sensitive directories.
func validateGlobPattern(pattern string) error {
	if strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("absolute paths not allowed in glob: %s", pattern)
	}
	if strings.HasPrefix(pattern, "..") {
		return fmt.Errorf("path traversal not allowed in glob: %s", pattern)
	}
	for _, forbidden := range []string{".git", ".env", ".ssh", ".aws", ".config", ".secret"} {
		if strings.Contains(pattern, forbidden) {
			return fmt.Errorf("pattern targets forbidden directory: %s", forbidden)
		}
	}
	return nil
}

// GrepTool searches the repository for a regex pattern.
type GrepTool struct {
	repo Repository
}

func (t *GrepTool) Name() string { return "grep" }
func (t *GrepTool) Description() string {
	return "Search for a pattern in the codebase. Input: search pattern (regex supported)"
}

func (t *GrepTool) Execute(ctx context.Context, input string) (string, error) {
	pattern := strings.TrimSpace(input)
	if pattern == "" {
		return "", fmt.Errorf("search pattern required")
	}
	matches, err := t.repo.Grep(pattern)
	if err != nil {
		return "", fmt.Errorf("grep %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "No matches found", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matches:\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Content)
	}
	return truncateOutput(sb.String()), nil
}

// GlobTool finds files matching a pattern.
type GlobTool struct {
	repo Repository
}

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "Find files matching a pattern. Input: glob pattern (e.g., 'internal/**/*.go')"
}

func (t *GlobTool) Execute(ctx context.Context, input string) (string, error) {
	pattern := strings.TrimSpace(input)
	if pattern == "" {
		return "", fmt.Errorf("glob pattern required")
	}
	if err := validateGlobPattern(pattern); err != nil {
		return "", err
	}
	files, err := t.repo.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return "No files found matching pattern", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d files:\n", len(files))
	for _, f := range files {
		sb.WriteString(f + "\n")
	}
	return truncateOutput(sb.String()), nil
}

// BashTool runs a strictly allowlisted, read-only command.
type BashTool struct {
	repo Repository
}

func (t *BashTool) Name() string { return "bash" }
func (t *BashTool) Description() string {
	return "Run a safe read-only command (go build, go vet, git diff, etc.). Input: command and arguments"
}

// safeCommands enumerates permitted commands and, where non-nil, the
// only subcommands allowed for them.
//
// Deliberately excluded: "go test"/"go run"/"go generate" (execute
// arbitrary code) and "go mod download/tidy" (network access).
var safeCommands = map[string][]string{
	"go":   {"build", "vet", "list", "version", "env"},
	"git":  {"status", "log", "show", "diff", "branch", "rev-parse", "describe", "ls-files"},
	"echo": nil,
	"head": nil,
	"tail": nil,
	"wc":   nil,
	"ls":   nil,
}

// dangerousPatterns are substrings that are never allowed, regardless of
// which command precedes them (shell metacharacters, code execution,
// network access, privilege escalation).
var dangerousPatterns = []string{
	"rm ", "rm\t", "rmdir", "mv ", "mv\t", "dd ", "dd\t",
	"curl", "wget", "nc ", "nc\t", "netcat", "ssh", "scp", "rsync",
	"chmod", "chown", "sudo", "su ", "su\t",
	"eval", "exec", "xargs", "env ", "env\t",
	"sh ", "sh\t", "bash", "zsh", "python", "python3", "ruby", "perl", "node",
	">", ">>", "|", ";", "&&", "||", "`", "$(", "${", "\\n",
}

func (t *BashTool) Execute(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("command required")
	}

	inputLower := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(inputLower, strings.ToLower(pattern)) {
			return "", fmt.Errorf("command contains forbidden pattern: %s", pattern)
		}
	}

	parts := strings.Fields(input)
	cmd, args := parts[0], parts[1:]

	allowedSubcmds, cmdAllowed := safeCommands[cmd]
	if !cmdAllowed {
		return "", fmt.Errorf("command %q not in allowlist", cmd)
	}
	if allowedSubcmds != nil {
		if len(args) == 0 {
			return "", fmt.Errorf("command %q requires a subcommand", cmd)
		}
		allowed := false
		for _, s := range allowedSubcmds {
			if s == args[0] {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("subcommand %q not allowed for %q (allowed: %v)", args[0], cmd, allowedSubcmds)
		}
	}

	result, err := t.repo.RunCommand(ctx, cmd, args...)
	if err != nil {
		return "", fmt.Errorf("running command: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Exit code: %d\n", result.ExitCode)
	if result.Stdout != "" {
		sb.WriteString("Stdout:\n")
		sb.WriteString(result.Stdout)
		sb.WriteString("\n")
	}
	if result.Stderr != "" {
		sb.WriteString("Stderr:\n")
		sb.WriteString(result.Stderr)
		sb.WriteString("\n")
	}
	return truncateOutput(sb.String()), nil
}

func truncateOutput(s string) string {
	if len(s) <= MaxToolOutputLength {
		return s
	}
	return s[:MaxToolOutputLength] + "\n... [output truncated]"
}
